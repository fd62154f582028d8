package replica

import (
	cryptorand "crypto/rand"
	"encoding/hex"

	"github.com/estuary/vr/go/vrid"
	"github.com/estuary/vr/go/vrmsg"
)

// pollRecovering drives the Recovery protocol (spec §4.6): broadcast a
// freshly-nonced Recovery once on entry, then collect RecoveryResponses
// correlated by that nonce until a quorum agrees on a single view whose
// primary is among the responders — at which point that primary's
// response is authoritative and this replica rejoins as Normal.
func (r *Replica) pollRecovering() error {
	if !r.recoveryStarted {
		r.recoveryStarted = true
		r.nonce = newNonce()
		r.mailbox.Broadcast(r.view, vrmsg.Recovery{From: r.self.Index, Nonce: r.nonce})
	}

	r.mailbox.SelectAll(func(from vrmsg.Address, env vrmsg.Envelope) *vrmsg.Envelope {
		switch p := env.Payload.(type) {
		case vrmsg.Recovery:
			if r.crashDetector != nil {
				r.crashDetector.ObserveRecovery(p.From)
			}
			return nil // can't answer another's Recovery while recovering ourselves.

		case vrmsg.RecoveryResponse:
			if p.Nonce != r.nonce {
				return nil // stale: from a prior incarnation's Recovery round.
			}
			r.recoveryResponses[p.From] = p
			return nil

		default:
			if r.crashDetector != nil {
				r.crashDetector.ObserveOther()
			}
			return nil
		}
	})

	return r.tryCompleteRecovery()
}

// tryCompleteRecovery looks for a view with both a quorum of responses and
// a response from that view's own primary, preferring the greatest such
// view if more than one qualifies (spec §4.6).
func (r *Replica) tryCompleteRecovery() error {
	var byView = make(map[vrid.View][]vrmsg.RecoveryResponse)
	for _, resp := range r.recoveryResponses {
		byView[resp.View] = append(byView[resp.View], resp)
	}

	var bestView vrid.View
	var bestPrimary vrmsg.RecoveryResponse
	var haveBest bool

	for view, resps := range byView {
		if len(resps) < r.self.Group.Quorum() {
			continue
		}
		var primaryResp vrmsg.RecoveryResponse
		var havePrimary bool
		for _, resp := range resps {
			if resp.IsPrimary {
				primaryResp, havePrimary = resp, true
				break
			}
		}
		if !havePrimary {
			continue
		}
		if !haveBest || view > bestView {
			bestView, bestPrimary, haveBest = view, primaryResp, true
		}
	}
	if !haveBest {
		return nil
	}

	r.view = bestView
	if err := r.log.Replace(bestPrimary.Log, 0); err != nil {
		return nil // a fresh recovery has no committed floor; this should not happen.
	}
	r.opNumber = r.log.Len()
	r.committed = bestPrimary.Committed
	if err := r.rebuildFromLog(); err != nil {
		return err
	}

	r.status = StatusNormal
	if err := r.persistView(); err != nil {
		return err
	}

	// Acknowledge every uncommitted entry the donor's log carried, so the
	// primary can reach quorum on them even though this replica never saw
	// the original Prepare broadcasts (spec §4.6).
	for n := r.committed + 1; n <= r.opNumber; n++ {
		r.mailbox.Send(r.primaryID(), r.view, vrmsg.PrepareOk{N: n, From: r.self.Index})
	}

	r.recoveryResponses = nil
	r.nonce = ""
	return nil
}

func newNonce() string {
	var b [16]byte
	_, _ = cryptorand.Read(b[:])
	return hex.EncodeToString(b[:])
}
