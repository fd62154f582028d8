package replica

import (
	"github.com/estuary/vr/go/health"
	"github.com/estuary/vr/go/vrmsg"
)

// pollPrimaryNormal is the primary's steady-state procedure (spec §4.3).
// It processes every inbound envelope via select_all rather than a
// single-pass select: a PrepareOk for an op number that hasn't yet reached
// quorum must be retained without blocking processing of PrepareOks for
// other, independently in-flight op numbers that happen to sit behind it
// in arrival order — which a stop-at-first-requeue select cannot express
// once more than one operation is in flight at a time.
func (r *Replica) pollPrimaryNormal() error {
	var firstErr error

	r.mailbox.SelectAll(func(from vrmsg.Address, env vrmsg.Envelope) *vrmsg.Envelope {
		switch p := env.Payload.(type) {
		case vrmsg.Request:
			r.handlePrimaryRequest(p)
			return nil

		case vrmsg.PrepareOk:
			if p.N <= r.committed {
				return nil // already committed: consumed, no longer interesting.
			}
			if err := r.onPrepareOk(p); err != nil && firstErr == nil {
				firstErr = err
			}
			if p.N <= r.committed {
				return nil // just reached quorum and committed: consume.
			}
			return &env // still short of quorum: keep for a later poll.

		case vrmsg.Recovery:
			r.respondToRecovery(from, p)
			return nil

		case vrmsg.GetState:
			r.respondToGetState(from, p)
			return nil

		default:
			return nil // not relevant to primary-normal processing.
		}
	})

	// Idle heartbeat (spec §4.3): if this primary's own liveness reading
	// has gone quiet, broadcast Commit so backups don't start suspecting it
	// even though nothing new has happened to prepare.
	if r.detector.Detect(r.view, r.self) >= health.Suspect {
		r.mailbox.Broadcast(r.view, vrmsg.Commit{Committed: r.committed})
	}

	return firstErr
}

// handlePrimaryRequest classifies an inbound Request against the
// ClientTable (spec §4.3), reconciled with scenario S6: a client is only
// ever allowed one in-flight request at a time, so a second, distinct
// RequestIdentifier arriving while the tracked one is still unresolved is
// answered with ConcurrentRequest rather than treated as supersession —
// overwrite-on-newer only applies once the tracked request has a cached
// reply.
func (r *Replica) handlePrimaryRequest(p vrmsg.Request) {
	var entry, ok = r.clientTable.Lookup(p.Client)
	if !ok {
		r.startNewRequest(p)
		return
	}

	if !entry.HasReply {
		if p.RequestID == entry.RequestID {
			return // duplicate of the request already in flight: drop, don't re-broadcast.
		}
		r.mailbox.Reply(p.Client, r.view, vrmsg.ConcurrentRequest{Seen: entry.RequestID})
		return
	}

	switch {
	case p.RequestID == entry.RequestID:
		r.mailbox.Reply(p.Client, r.view, vrmsg.Reply{RequestID: entry.RequestID, Result: entry.Reply})
	case p.RequestID.Newer(entry.RequestID):
		r.startNewRequest(p)
	default:
		r.mailbox.Reply(p.Client, r.view, vrmsg.OutdatedRequest{Seen: entry.RequestID})
	}
}

func (r *Replica) startNewRequest(p vrmsg.Request) {
	var prediction, err = r.svc.Predict(p.Operation)
	if err != nil {
		r.logger.WithError(err).Warn("service Predict failed; dropping request")
		return
	}

	r.clientTable.Start(p.Client, p.RequestID)
	var rec = vrmsg.LogRecord{Client: p.Client, RequestID: p.RequestID, Operation: p.Operation, Prediction: prediction}
	var n = r.log.Append(rec)
	r.opNumber = n

	r.mailbox.Broadcast(r.view, vrmsg.Prepare{N: n, Committed: r.committed, Entry: rec})
	r.detector.Notify(r.view, r.self)
}

// onPrepareOk folds in a backup's acknowledgement and, once a
// sub-majority (f) has acknowledged op number n — which together with the
// primary's own implicit vote reaches quorum (f+1) — executes every
// contiguous committed entry up to n (spec §4.3, §4.5).
func (r *Replica) onPrepareOk(p vrmsg.PrepareOk) error {
	var set, ok = r.acks[p.N]
	if !ok {
		set = make(map[int]struct{})
		r.acks[p.N] = set
	}
	set[p.From] = struct{}{}

	if len(set) < r.self.Group.SubMajority() {
		return nil
	}
	if err := r.executeCommitted(p.N, true); err != nil {
		return err
	}
	for n := range r.acks {
		if n <= r.committed {
			delete(r.acks, n)
		}
	}
	return nil
}
