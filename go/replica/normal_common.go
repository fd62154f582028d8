package replica

import (
	"math/rand"

	"github.com/estuary/vr/go/vrid"
	"github.com/estuary/vr/go/vrmsg"
)

// respondToRecovery answers an inbound Recovery with this replica's current
// state, if (and only if) this replica is itself Normal: a replica that is
// mid-view-change or recovering has nothing authoritative to offer (spec
// §4.6). Recovery may arrive at any replica regardless of role or status,
// so both Normal-status poll paths (primary and backup) handle it in the
// same pass as their role-specific matching.
func (r *Replica) respondToRecovery(from vrmsg.Address, req vrmsg.Recovery) {
	if r.status != StatusNormal || from.Kind != vrmsg.AddressReplica {
		return
	}
	r.mailbox.Send(from.Replica, r.view, vrmsg.RecoveryResponse{
		From:      r.self.Index,
		IsPrimary: r.self.IsPrimary(r.view),
		Nonce:     req.Nonce,
		View:      r.view,
		Log:       r.log.Snapshot(),
		Committed: r.committed,
	})
}

// respondToGetState answers an inbound GetState with the log suffix after
// the requester's reported op number, if this replica is itself caught up
// to at least that point (spec §4.8). A replica that can't yet help simply
// stays silent; the requester then issues no further GetState until a
// NewState arrives or its view changes (see requestStateTransfer).
func (r *Replica) respondToGetState(from vrmsg.Address, req vrmsg.GetState) {
	if from.Kind != vrmsg.AddressReplica || r.opNumber < req.OpNumber {
		return
	}
	r.mailbox.Send(from.Replica, r.view, vrmsg.NewState{
		AfterOpNumber: req.OpNumber,
		Suffix:        r.log.Suffix(req.OpNumber),
		Latest:        r.opNumber,
		Committed:     r.committed,
	})
}

// requestStateTransfer issues a GetState to a peer able to fill the gap
// between this replica's op number and whatever further progress it has
// just observed (spec §4.8). It targets the primary of the current view;
// only if this replica is itself that primary does it pick a random peer.
// stateTransferPending debounces repeated issuance across polls until the
// corresponding NewState arrives.
func (r *Replica) requestStateTransfer() {
	if r.stateTransferPending {
		return
	}
	r.stateTransferPending = true

	var target = r.primaryID()
	if target == r.self {
		target = vrid.ReplicaIdentifier{
			Group: r.self.Group,
			Index: randomPeerIndex(r.self),
		}
	}
	r.mailbox.Send(target, r.view, vrmsg.GetState{OpNumber: r.opNumber, From: r.self.Index})
}

func randomPeerIndex(self vrid.ReplicaIdentifier) int {
	var n = self.Group.N
	if n <= 1 {
		return self.Index
	}
	var idx = rand.Intn(n - 1)
	if idx >= self.Index {
		idx++
	}
	return idx
}

// applyNewState splices a state-transfer response onto the log if it
// aligns with this replica's current op number, then executes whatever
// newly became committed (spec §4.8). A misaligned response (the donor's
// reported base doesn't match) is discarded; the next poll's gap detection
// will issue a fresh GetState.
func (r *Replica) applyNewState(msg vrmsg.NewState) error {
	r.stateTransferPending = false
	if msg.AfterOpNumber != r.opNumber {
		return nil
	}
	r.log.AppendSuffix(msg.Suffix)
	r.opNumber = r.log.Len()
	if msg.Committed > r.committed {
		return r.executeCommitted(msg.Committed, false)
	}
	return nil
}
