package simulate

import "github.com/estuary/vr/go/vrlog"

// MemoryStore is an in-process vrlog.NonVolatileStore: a value durable only
// across a Replica's reconstruction within the same process, not across an
// actual machine restart. It exists so the harness (and tests) can model a
// replica crash — discard the Replica, keep the store — without pulling in
// a real filesystem-backed store (see go/nonvolatile/sqlite for that).
type MemoryStore struct {
	state   vrlog.NonVolatileState
	present bool
}

var _ vrlog.NonVolatileStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store, as if this replica had never run.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load() (vrlog.NonVolatileState, error) {
	if !s.present {
		return vrlog.NonVolatileState{}, nil
	}
	return s.state, nil
}

func (s *MemoryStore) Save(nvs vrlog.NonVolatileState) error {
	s.state = nvs
	s.present = true
	return nil
}
