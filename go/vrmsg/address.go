package vrmsg

import "github.com/estuary/vr/go/vrid"

// AddressKind discriminates the three shapes an Envelope's To/From may take.
type AddressKind int

const (
	// AddressReplica targets exactly one replica.
	AddressReplica AddressKind = iota
	// AddressGroup targets every replica of a group except the sender.
	AddressGroup
	// AddressClient targets a client's inbox.
	AddressClient
)

// Address is a tagged union over {Replica(id), Group(id), Client(id)}.
// Exactly the field matching Kind is meaningful.
type Address struct {
	Kind    AddressKind
	Replica vrid.ReplicaIdentifier
	Group   vrid.GroupIdentifier
	Client  vrid.ClientIdentifier
}

// ToReplica builds a replica-targeted Address.
func ToReplica(id vrid.ReplicaIdentifier) Address {
	return Address{Kind: AddressReplica, Replica: id}
}

// ToGroup builds a group-broadcast Address.
func ToGroup(g vrid.GroupIdentifier) Address {
	return Address{Kind: AddressGroup, Group: g}
}

// ToClient builds a client-targeted Address.
func ToClient(c vrid.ClientIdentifier) Address {
	return Address{Kind: AddressClient, Client: c}
}

func (a Address) String() string {
	switch a.Kind {
	case AddressReplica:
		return a.Replica.String()
	case AddressGroup:
		return "group:" + a.Group.String()
	case AddressClient:
		return "client:" + string(a.Client)
	default:
		return "unknown-address"
	}
}
