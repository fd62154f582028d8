package driver

import (
	log "github.com/sirupsen/logrus"

	"github.com/estuary/vr/go/vrid"
	"github.com/estuary/vr/go/vrmsg"
)

// InMemoryDriver is a reference Driver for tests and the CLI demo: it holds
// every replica's Pollable directly and delivers routed envelopes straight
// into mailboxes, with a side inbox per client.
type InMemoryDriver struct {
	replicas map[vrid.ReplicaIdentifier]Pollable
	clients  map[vrid.ClientIdentifier][]vrmsg.Envelope
}

var _ Driver = (*InMemoryDriver)(nil)

// NewInMemoryDriver returns a Driver that knows how to route to every
// replica in replicas. Replicas joining later can be added with Register.
func NewInMemoryDriver(replicas ...Pollable) *InMemoryDriver {
	var d = &InMemoryDriver{
		replicas: make(map[vrid.ReplicaIdentifier]Pollable, len(replicas)),
		clients:  make(map[vrid.ClientIdentifier][]vrmsg.Envelope),
	}
	for _, r := range replicas {
		d.Register(r)
	}
	return d
}

// Register adds (or replaces) a replica the driver can route to. Used both
// at construction and when a crashed replica is recreated with fresh
// volatile state (spec §5: "a replica crash is modeled by discarding its
// mailbox and volatile state").
func (d *InMemoryDriver) Register(r Pollable) {
	d.replicas[r.Identifier()] = r
}

// Unregister removes a replica from routing, modeling a crash: its mailbox
// and volatile state are simply dropped by the caller.
func (d *InMemoryDriver) Unregister(id vrid.ReplicaIdentifier) {
	delete(d.replicas, id)
}

// SubmitClientRequest routes a client-originated envelope (a Request) as a
// group broadcast: the client doesn't need to know which replica is
// currently primary, since only the primary acts on a Request and every
// backup silently discards it (spec §4.3).
func (d *InMemoryDriver) SubmitClientRequest(env vrmsg.Envelope) {
	d.Route(env)
}

// DrainClient removes and returns every envelope addressed to client c.
func (d *InMemoryDriver) DrainClient(c vrid.ClientIdentifier) []vrmsg.Envelope {
	var out = d.clients[c]
	delete(d.clients, c)
	return out
}

// Route implements Driver per spec §6's addressing contract.
func (d *InMemoryDriver) Route(env vrmsg.Envelope) {
	switch env.To.Kind {
	case vrmsg.AddressReplica:
		if r, ok := d.replicas[env.To.Replica]; ok {
			r.Mailbox().Deliver(env)
		} else {
			log.WithField("to", env.To).Debug("vr driver: dropping envelope to unknown replica")
		}
	case vrmsg.AddressGroup:
		for id, r := range d.replicas {
			if env.From.Kind == vrmsg.AddressReplica && id == env.From.Replica {
				continue // never echo a broadcast to its origin (spec §5).
			}
			if id.Group != env.To.Group {
				continue
			}
			r.Mailbox().Deliver(env)
		}
	case vrmsg.AddressClient:
		d.clients[env.To.Client] = append(d.clients[env.To.Client], env)
	}
}

// Drive polls each replica exactly once, routing whatever it stages.
func (d *InMemoryDriver) Drive(replicas []Pollable) error {
	for _, r := range replicas {
		if err := r.Poll(); err != nil {
			return err
		}
		for _, env := range r.Mailbox().DrainOutbound() {
			d.Route(env)
		}
	}
	return nil
}

// DriveToEmpty polls replicas repeatedly until every mailbox is empty.
func (d *InMemoryDriver) DriveToEmpty(replicas []Pollable) error {
	for {
		var any bool
		for _, r := range replicas {
			if !r.Mailbox().IsEmpty() {
				any = true
				break
			}
		}
		if !any {
			return nil
		}
		if err := d.Drive(replicas); err != nil {
			return err
		}
	}
}
