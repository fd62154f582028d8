// Package vrid defines the identifier and stamp types shared by every layer
// of the VR engine: group and replica identity, client/request identifiers,
// and the View and OpNumber stamps that order protocol state.
package vrid

import "fmt"

// GroupIdentifier names a replication group of N = 2f+1 replicas.
// Two GroupIdentifiers are equal only if both Token and N match.
type GroupIdentifier struct {
	Token string
	N     int
}

// Primary returns the index of the replica which is primary for View v.
func (g GroupIdentifier) Primary(v View) int {
	return int(uint64(v) % uint64(g.N))
}

// SubMajority returns f, the largest number of replicas that may crash
// without losing availability.
func (g GroupIdentifier) SubMajority() int {
	return (g.N - 1) / 2
}

// Quorum returns f+1, the smallest set of replicas that intersects any
// other such set.
func (g GroupIdentifier) Quorum() int {
	return g.SubMajority() + 1
}

func (g GroupIdentifier) String() string {
	return fmt.Sprintf("%s(n=%d)", g.Token, g.N)
}

// ReplicaIdentifier names one replica within a GroupIdentifier.
type ReplicaIdentifier struct {
	Group GroupIdentifier
	Index int
}

func (r ReplicaIdentifier) String() string {
	return fmt.Sprintf("%s/%d", r.Group, r.Index)
}

// IsPrimary returns whether r is the primary of view v within its group.
func (r ReplicaIdentifier) IsPrimary(v View) bool {
	return r.Group.Primary(v) == r.Index
}

// ClientIdentifier names a client submitting requests to the group.
type ClientIdentifier string

// RequestIdentifier is a per-client, totally-ordered request stamp.
// Larger values are newer; clients are expected to mint these from a
// monotonic local counter or clock.
type RequestIdentifier uint64

// Newer reports whether r is strictly newer than other.
func (r RequestIdentifier) Newer(other RequestIdentifier) bool { return r > other }

// View names a primary epoch. Views only ever increase for a given replica.
type View uint64

// OpNumber is a 1-indexed position in the replicated log; OpNumber(0) means
// "no entries yet".
type OpNumber uint64

// Next returns the OpNumber immediately following n.
func (n OpNumber) Next() OpNumber { return n + 1 }
