package health

import "github.com/estuary/vr/go/vrid"

// Fake is a scriptable Detector for deterministic tests and the simulation
// harness: the test sets an explicit Level per replica index and Detect
// simply returns it, ignoring view and Notify calls entirely.
type Fake struct {
	Levels map[int]Level
}

// NewFake returns a Fake where every replica reads Normal until overridden.
func NewFake() *Fake {
	return &Fake{Levels: make(map[int]Level)}
}

// Set pins replica's reported level.
func (f *Fake) Set(replica int, level Level) {
	f.Levels[replica] = level
}

func (f *Fake) Detect(_ vrid.View, replica vrid.ReplicaIdentifier) Level {
	if lvl, ok := f.Levels[replica.Index]; ok {
		return lvl
	}
	return Normal
}

func (f *Fake) Notify(vrid.View, vrid.ReplicaIdentifier) {}
