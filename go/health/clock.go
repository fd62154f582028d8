package health

import (
	"sync"
	"time"

	"github.com/estuary/vr/go/vrid"
)

// ClockDetector is a reference Detector driven by wall-clock silence: a
// (view, replica) pair is Suspect once SuspectAfter has elapsed since the
// last Notify, and Unhealthy once UnhealthyAfter has elapsed. Embedders
// drive it from a real clock by calling Notify whenever a message from that
// replica (at that view) arrives.
type ClockDetector struct {
	SuspectAfter   time.Duration
	UnhealthyAfter time.Duration
	now            func() time.Time

	mu   sync.Mutex
	seen map[key]time.Time
}

type key struct {
	view  vrid.View
	index int
}

// NewClockDetector returns a ClockDetector using time.Now as its clock.
func NewClockDetector(suspectAfter, unhealthyAfter time.Duration) *ClockDetector {
	return &ClockDetector{
		SuspectAfter:   suspectAfter,
		UnhealthyAfter: unhealthyAfter,
		now:            time.Now,
		seen:           make(map[key]time.Time),
	}
}

// Notify records that replica was observed alive at view.
func (d *ClockDetector) Notify(view vrid.View, replica vrid.ReplicaIdentifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[key{view, replica.Index}] = d.now()
}

// Detect reports the liveness level implied by elapsed silence.
func (d *ClockDetector) Detect(view vrid.View, replica vrid.ReplicaIdentifier) Level {
	d.mu.Lock()
	defer d.mu.Unlock()

	var last, ok = d.seen[key{view, replica.Index}]
	if !ok {
		// Never notified at this view: treat as freshly-started, i.e. alive.
		return Normal
	}
	switch elapsed := d.now().Sub(last); {
	case elapsed >= d.UnhealthyAfter:
		return Unhealthy
	case elapsed >= d.SuspectAfter:
		return Suspect
	default:
		return Normal
	}
}
