// Package driver defines the Driver contract (spec §6) that routes
// Envelopes between replicas and clients, and supplies an in-memory
// implementation used by tests, the simulation harness, and the CLI demo.
// A production transport (gRPC, TCP framing, etc.) is explicitly out of
// scope for this module (spec §1) — only the interface and this in-memory
// reference implementation live here.
package driver

import (
	"github.com/estuary/vr/go/mailbox"
	"github.com/estuary/vr/go/vrid"
	"github.com/estuary/vr/go/vrmsg"
)

// Pollable is the minimal surface a Driver needs from a replica: its
// identity (for routing and self-exclusion on broadcast), its mailbox
// (to deliver inbound and drain outbound), and a Poll method that performs
// one bounded unit of work (spec §5).
type Pollable interface {
	Identifier() vrid.ReplicaIdentifier
	Mailbox() *mailbox.Mailbox
	Poll() error
}

// Driver routes Envelopes per spec §6: Replica(r) to r; Group(g) to every
// replica of g except the sender; Client(c) to that client's inbox.
type Driver interface {
	Route(env vrmsg.Envelope)
	// Drive polls each replica exactly once, routing whatever it stages.
	Drive(replicas []Pollable) error
	// DriveToEmpty polls replicas repeatedly until every mailbox — and the
	// driver's own routing queues — are empty.
	DriveToEmpty(replicas []Pollable) error
}
