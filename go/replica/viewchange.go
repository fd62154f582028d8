package replica

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/estuary/vr/go/vrid"
	"github.com/estuary/vr/go/vrmsg"
)

// bumpToViewChange moves the replica into ViewChange status at newView,
// resetting all view-change bookkeeping and broadcasting the mandatory
// preliminary StartViewChange round (spec §4.4's resolution of the
// "is StartViewChange required" Open Question: yes, always, per the
// original VR paper — it lets every replica, not just the eventual
// primary, observe that a view change is underway before committing to
// one). newView must be strictly greater than the current view; a stale
// or equal newView is a no-op.
func (r *Replica) bumpToViewChange(newView vrid.View) error {
	if newView <= r.view {
		return nil
	}
	r.view = newView
	r.status = StatusViewChange
	r.svcAcks = map[int]struct{}{r.self.Index: {}}
	r.doViewChangeMsgs = make(map[int]vrmsg.DoViewChange)
	r.doViewChangeSent = false
	r.stateTransferPending = false

	if err := r.persistView(); err != nil {
		return err
	}
	r.mailbox.Broadcast(r.view, vrmsg.StartViewChange{From: r.self.Index})
	viewChangesTotal.WithLabelValues(r.self.Group.String(), strconv.Itoa(r.self.Index)).Inc()
	return nil
}

func (r *Replica) resetViewChangeBookkeeping() {
	r.svcAcks = nil
	r.doViewChangeMsgs = nil
	r.doViewChangeSent = false
	r.stateTransferPending = false
}

// adoptStartView adopts an authoritative StartView, whether this replica
// is already in ViewChange at that view (pollViewChange accepts an equal or
// newer view) or simply missed the round and heard the new primary's
// announcement directly at a strictly newer view (spec §4.4). It never truncates below the locally-known
// committed position (vrlog.Log.Replace's invariant); a StartView that
// would is refused and left for a later, better one.
func (r *Replica) adoptStartView(view vrid.View, p vrmsg.StartView) error {
	if err := r.log.Replace(p.Log, r.committed); err != nil {
		r.logger.WithError(err).Warn("refusing StartView: would truncate committed entries")
		return nil
	}
	r.view = view
	r.opNumber = r.log.Len()
	if p.Committed > r.committed {
		r.committed = p.Committed
	}
	if err := r.rebuildFromLog(); err != nil {
		return err
	}

	r.status = StatusNormal
	if err := r.persistView(); err != nil {
		return err
	}
	r.resetViewChangeBookkeeping()
	return nil
}

// pollViewChange runs the view-change procedure shared by every replica in
// StatusViewChange, whether or not it turns out to be primary(v): first
// collect StartViewChange acknowledgements and send DoViewChange to
// primary(v) once a quorum agrees the view is changing, then — only if
// this replica is primary(v) — collect DoViewChange and complete the view
// change once a quorum of those has arrived (spec §4.4).
func (r *Replica) pollViewChange() error {
	var firstErr error

	r.mailbox.SelectAll(func(from vrmsg.Address, env vrmsg.Envelope) *vrmsg.Envelope {
		switch p := env.Payload.(type) {
		case vrmsg.StartViewChange:
			if env.View > r.view {
				if err := r.bumpToViewChange(env.View); err != nil && firstErr == nil {
					firstErr = err
				}
				return &env
			}
			if env.View == r.view {
				r.svcAcks[p.From] = struct{}{}
			}
			return nil

		case vrmsg.DoViewChange:
			if env.View > r.view {
				if err := r.bumpToViewChange(env.View); err != nil && firstErr == nil {
					firstErr = err
				}
				return &env
			}
			if env.View == r.view && r.self.IsPrimary(r.view) {
				r.doViewChangeMsgs[p.From] = p
			}
			return nil

		case vrmsg.StartView:
			if env.View >= r.view {
				if err := r.adoptStartView(env.View, p); err != nil && firstErr == nil {
					firstErr = err
				}
			}
			return nil

		default:
			return nil // Request/Prepare/PrepareOk/Commit/Recovery/GetState: not actionable mid-view-change.
		}
	})
	if firstErr != nil {
		return firstErr
	}
	if r.status != StatusViewChange {
		return nil // adopted a StartView (or superseded to a higher view) mid-pass.
	}

	if len(r.svcAcks) >= r.self.Group.Quorum() && !r.doViewChangeSent {
		r.doViewChangeSent = true
		var dvc = vrmsg.DoViewChange{From: r.self.Index, Log: r.log.Snapshot(), Committed: r.committed}
		if r.self.IsPrimary(r.view) {
			r.doViewChangeMsgs[r.self.Index] = dvc
		} else {
			r.mailbox.Send(r.primaryID(), r.view, dvc)
		}
	}

	if r.self.IsPrimary(r.view) && len(r.doViewChangeMsgs) >= r.self.Group.Quorum() {
		return r.completeViewChangeAsPrimary()
	}
	return nil
}

// completeViewChangeAsPrimary selects the winning log among collected
// DoViewChange messages (longest wins; ties break toward the greater
// committed point, per spec §4.4) and announces it via StartView.
func (r *Replica) completeViewChangeAsPrimary() error {
	var best vrmsg.DoViewChange
	var found bool
	for _, dvc := range r.doViewChangeMsgs {
		if !found || isBetterLog(dvc, best) {
			best, found = dvc, true
		}
	}

	if err := r.log.Replace(best.Log, r.committed); err != nil {
		return errors.Wrap(err, "adopting view-change winning log")
	}
	r.opNumber = r.log.Len()
	if best.Committed > r.committed {
		r.committed = best.Committed
	}
	if err := r.rebuildFromLog(); err != nil {
		return err
	}

	r.status = StatusNormal
	if err := r.persistView(); err != nil {
		return err
	}
	r.mailbox.Broadcast(r.view, vrmsg.StartView{Log: r.log.Snapshot(), Committed: r.committed})
	r.resetViewChangeBookkeeping()
	return nil
}

func isBetterLog(a, b vrmsg.DoViewChange) bool {
	if len(a.Log) != len(b.Log) {
		return len(a.Log) > len(b.Log)
	}
	return a.Committed > b.Committed
}
