package replica

import "github.com/estuary/vr/go/vrid"

// CrashDetector implements the optional heuristic from spec §4.6: a
// recovering replica that hears a Recovery echo from every other replica of
// its group before any non-Recovery message arrives infers it was never
// contacted while down, i.e. it did not actually crash (only its process
// restarted, perhaps for a benign reason). The moment any other payload
// kind arrives first, the decision flips to "assume crashed" and is fixed
// for the remainder of this incarnation. This informs an embedder's policy
// choices (e.g. whether to replay side effects performed before the crash);
// the core engine itself is correct whether or not a CrashDetector is wired.
type CrashDetector struct {
	want    int
	seen    map[int]struct{}
	decided bool
	crashed bool
}

// NewCrashDetector returns a CrashDetector for self's group, pre-seeded with
// self's own slot since a replica has obviously heard from itself.
func NewCrashDetector(self vrid.ReplicaIdentifier) *CrashDetector {
	return &CrashDetector{
		want: self.Group.N,
		seen: map[int]struct{}{self.Index: {}},
	}
}

// ObserveRecovery records a Recovery sighting from replica index from.
func (d *CrashDetector) ObserveRecovery(from int) {
	if d.decided {
		return
	}
	d.seen[from] = struct{}{}
	if len(d.seen) >= d.want {
		d.decided = true
		d.crashed = false
	}
}

// ObserveOther records that some non-Recovery payload arrived before every
// replica had echoed Recovery, fixing the decision at "assume crashed".
func (d *CrashDetector) ObserveOther() {
	if d.decided {
		return
	}
	d.decided = true
	d.crashed = true
}

// Decision reports the detector's verdict, if one has been reached.
func (d *CrashDetector) Decision() (crashed, decided bool) {
	return d.crashed, d.decided
}
