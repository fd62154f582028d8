package replica

import (
	"github.com/estuary/vr/go/health"
	"github.com/estuary/vr/go/vrid"
	"github.com/estuary/vr/go/vrmsg"
)

// pollBackupNormal is a backup's steady-state procedure (spec §4.3, §4.8).
// It runs in three phases: a non-destructive visit to find the furthest
// commit point any inbound message signals, a contiguous in-order Prepare
// application (regardless of the arrival order the mailbox delivered them
// in), and a select_all pass that disposes of everything else — including
// noticing a log gap that requires state transfer, and a StartViewChange
// that means this replica should join a view change it didn't initiate.
func (r *Replica) pollBackupNormal() error {
	var proposedCommitted = r.committed
	var prepares = make(map[vrid.OpNumber]vrmsg.Prepare)

	r.mailbox.Visit(func(from vrmsg.Address, env vrmsg.Envelope) {
		switch p := env.Payload.(type) {
		case vrmsg.Commit:
			if p.Committed > proposedCommitted {
				proposedCommitted = p.Committed
			}
			r.notifyPrimaryIfFrom(from)
		case vrmsg.Prepare:
			if p.Committed > proposedCommitted {
				proposedCommitted = p.Committed
			}
			prepares[p.N] = p
			r.notifyPrimaryIfFrom(from)
		}
	})

	// Apply every contiguous, not-yet-held Prepare in op-number order,
	// independent of the order the mailbox happened to deliver them in.
	for {
		var p, ok = prepares[r.opNumber+1]
		if !ok {
			break
		}
		var n = r.log.Append(p.Entry)
		r.opNumber = n
		r.mailbox.Send(r.primaryID(), r.view, vrmsg.PrepareOk{N: n, From: r.self.Index})
	}

	var firstErr error
	var sawGap bool

	r.mailbox.SelectAll(func(from vrmsg.Address, env vrmsg.Envelope) *vrmsg.Envelope {
		switch p := env.Payload.(type) {
		case vrmsg.Commit:
			return nil // folded into proposedCommitted above.
		case vrmsg.Prepare:
			if p.N <= r.opNumber {
				return nil // already applied (or a stale replay): discard.
			}
			sawGap = true
			return &env // still ahead of our contiguous range: keep for state transfer.
		case vrmsg.Recovery:
			r.respondToRecovery(from, p)
			return nil
		case vrmsg.GetState:
			r.respondToGetState(from, p)
			return nil
		case vrmsg.NewState:
			if err := r.applyNewState(p); err != nil && firstErr == nil {
				firstErr = err
			}
			return nil
		case vrmsg.StartView:
			if env.View > r.view {
				if err := r.adoptStartView(env.View, p); err != nil && firstErr == nil {
					firstErr = err
				}
			}
			return nil
		case vrmsg.StartViewChange:
			if env.View > r.view {
				if err := r.bumpToViewChange(env.View); err != nil && firstErr == nil {
					firstErr = err
				}
				return &env // re-deliver: the ViewChange collection logic needs to see it too.
			}
			return nil
		default:
			return nil
		}
	})
	if firstErr != nil {
		return firstErr
	}
	if r.status != StatusNormal {
		return nil // adopted a StartView or joined a view change mid-poll.
	}

	if proposedCommitted > r.committed {
		if err := r.executeCommitted(proposedCommitted, false); err != nil {
			return err
		}
	}
	if sawGap || r.committed < proposedCommitted {
		r.requestStateTransfer()
	}

	if r.detector.Detect(r.view, r.primaryID()) >= health.Unhealthy {
		return r.bumpToViewChange(r.view + 1)
	}
	return nil
}

func (r *Replica) notifyPrimaryIfFrom(from vrmsg.Address) {
	if from.Kind == vrmsg.AddressReplica && from.Replica == r.primaryID() {
		r.detector.Notify(r.view, r.primaryID())
	}
}
