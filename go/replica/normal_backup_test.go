package replica

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/estuary/vr/go/health"
	"github.com/estuary/vr/go/service"
	"github.com/estuary/vr/go/vrid"
	"github.com/estuary/vr/go/vrmsg"
)

func deliverPrepare(r *Replica, n vrid.OpNumber, committed vrid.OpNumber, from vrid.ReplicaIdentifier) {
	r.Mailbox().Deliver(vrmsg.Envelope{
		From: vrmsg.ToReplica(from),
		To:   vrmsg.ToReplica(r.Identifier()),
		View: r.View(),
		Payload: vrmsg.Prepare{
			N:         n,
			Committed: committed,
			Entry:     vrmsg.LogRecord{Client: "client-a", RequestID: vrid.RequestIdentifier(n), Operation: []byte("SET x 1")},
		},
	})
}

func TestBackupAppliesPrepareAndAcks(t *testing.T) {
	var r = newTestReplica(t, 1, nil)
	deliverPrepare(r, 1, 0, testSelf(0))

	require.NoError(t, r.Poll())
	require.Equal(t, vrid.OpNumber(1), r.opNumber)

	var out = r.Mailbox().DrainOutbound()
	require.Len(t, out, 1)
	var ack, isOk = out[0].Payload.(vrmsg.PrepareOk)
	require.True(t, isOk)
	require.Equal(t, vrid.OpNumber(1), ack.N)
}

func TestBackupAppliesPreparesInOpNumberOrderRegardlessOfArrival(t *testing.T) {
	var r = newTestReplica(t, 1, nil)
	// Deliver out of numeric order: 2 arrives before 1.
	deliverPrepare(r, 2, 0, testSelf(0))
	deliverPrepare(r, 1, 0, testSelf(0))

	require.NoError(t, r.Poll())
	require.Equal(t, vrid.OpNumber(2), r.opNumber, "both contiguous entries apply once order permits")
	require.True(t, r.log.Has(1))
	require.True(t, r.log.Has(2))
}

func TestBackupHoldsPrepareWithGapPendingStateTransfer(t *testing.T) {
	var r = newTestReplica(t, 1, nil)
	deliverPrepare(r, 2, 0, testSelf(0)) // N=2 arrives with no N=1 yet: a gap.

	require.NoError(t, r.Poll())
	require.Equal(t, vrid.OpNumber(0), r.opNumber, "a gapped Prepare cannot apply yet")

	var out = r.Mailbox().DrainOutbound()
	require.Len(t, out, 1)
	require.Equal(t, vrmsg.KindGetState, out[0].Payload.Kind(), "the gap must trigger state transfer")
}

func TestBackupFoldsCommitIntoProposedCommitted(t *testing.T) {
	var r = newTestReplica(t, 1, nil)
	deliverPrepare(r, 1, 0, testSelf(0))
	require.NoError(t, r.Poll())
	r.Mailbox().DrainOutbound()

	r.Mailbox().Deliver(vrmsg.Envelope{
		From:    vrmsg.ToReplica(testSelf(0)),
		To:      vrmsg.ToReplica(r.Identifier()),
		View:    r.View(),
		Payload: vrmsg.Commit{Committed: 1},
	})
	require.NoError(t, r.Poll())

	require.Equal(t, vrid.OpNumber(1), r.Committed())
}

func TestBackupJoinsViewChangeOnceUnhealthyDetected(t *testing.T) {
	var fake = health.NewFake()
	var r, err = New(Config{
		Self:           testSelf(1),
		Store:          &memStore{},
		Detector:       fake,
		ServiceFactory: service.NewKV,
	})
	require.NoError(t, err)

	fake.Set(0, health.Unhealthy) // replica 0 is primary(0).
	require.NoError(t, r.Poll())

	require.Equal(t, StatusViewChange, r.Status())
	require.Equal(t, vrid.View(1), r.View())
}
