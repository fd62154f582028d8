// Package health defines the HealthDetector contract the engine polls to
// decide whether to heartbeat (as primary) or suspect the primary and begin
// a view change (as backup) — spec §6, §4.3, §5. The core has no internal
// timers; all liveness decisions are an output of a HealthDetector reading.
package health

import "github.com/estuary/vr/go/vrid"

// Level orders liveness readings from best to worst.
type Level int

const (
	Normal Level = iota
	Suspect
	Unhealthy
)

func (l Level) String() string {
	switch l {
	case Normal:
		return "Normal"
	case Suspect:
		return "Suspect"
	case Unhealthy:
		return "Unhealthy"
	default:
		return "Unknown"
	}
}

// Detector reports on the liveness of a (view, replica) pair, and is
// notified whenever the replica observes a sign of that replica being
// alive (a received message of any kind, at minimum).
type Detector interface {
	Detect(view vrid.View, replica vrid.ReplicaIdentifier) Level
	Notify(view vrid.View, replica vrid.ReplicaIdentifier)
}
