package vrlog

import "github.com/estuary/vr/go/vrid"

// NonVolatileState is the minimal durable footprint of a replica: its own
// identity, and the highest view it has ever used in an outbound Normal-
// status message (spec §3, I5). The log itself is never persisted here —
// it is reconstructed via the Recovery protocol (spec §9).
type NonVolatileState struct {
	Replica       vrid.ReplicaIdentifier
	HasLatestView bool
	LatestView    vrid.View
}

// NonVolatileStore is the durable load/save contract a replica is built
// from (spec §6). Save must not return until the write is durable: per
// spec §7, a failure here is the one fatal error kind in the whole engine.
type NonVolatileStore interface {
	Load() (NonVolatileState, error)
	Save(NonVolatileState) error
}
