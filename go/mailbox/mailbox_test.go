package mailbox

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/estuary/vr/go/vrid"
	"github.com/estuary/vr/go/vrmsg"
)

func testSelf() vrid.ReplicaIdentifier {
	return vrid.ReplicaIdentifier{Group: vrid.GroupIdentifier{Token: "g", N: 3}, Index: 0}
}

func deliverN(m *Mailbox, ns ...vrid.OpNumber) {
	for _, n := range ns {
		m.Deliver(vrmsg.Envelope{
			From:    vrmsg.ToReplica(vrid.ReplicaIdentifier{Group: testSelf().Group, Index: 1}),
			To:      vrmsg.ToReplica(testSelf()),
			Payload: vrmsg.PrepareOk{N: n, From: 1},
		})
	}
}

func TestSendBroadcastReplyStageOutbound(t *testing.T) {
	var m = New(testSelf())
	var peer = vrid.ReplicaIdentifier{Group: testSelf().Group, Index: 1}

	m.Send(peer, 0, vrmsg.Commit{Committed: 1})
	m.Broadcast(0, vrmsg.StartViewChange{From: 0})
	m.Reply("client-a", 0, vrmsg.Reply{RequestID: 1})

	var out = m.DrainOutbound()
	require.Len(t, out, 3)
	require.Equal(t, vrmsg.AddressReplica, out[0].To.Kind)
	require.Equal(t, vrmsg.AddressGroup, out[1].To.Kind)
	require.Equal(t, vrmsg.AddressClient, out[2].To.Kind)
	require.Empty(t, m.DrainOutbound())
}

func TestSelectStopsAtFirstRequeue(t *testing.T) {
	var m = New(testSelf())
	deliverN(m, 1, 2, 3)

	var visited []vrid.OpNumber
	m.Select(func(from vrmsg.Address, env vrmsg.Envelope) *vrmsg.Envelope {
		var p = env.Payload.(vrmsg.PrepareOk)
		visited = append(visited, p.N)
		if p.N == 2 {
			return &env // re-queue; stop consuming further.
		}
		return nil
	})

	require.Equal(t, []vrid.OpNumber{1, 2}, visited, "Select must not look past the first re-queue")
	require.Equal(t, 2, m.Len(), "entry 2 and everything behind it stay queued")
}

func TestSelectAllVisitsEveryEnvelopeAndPreservesOrder(t *testing.T) {
	var m = New(testSelf())
	deliverN(m, 1, 2, 3)

	var visited []vrid.OpNumber
	m.SelectAll(func(from vrmsg.Address, env vrmsg.Envelope) *vrmsg.Envelope {
		var p = env.Payload.(vrmsg.PrepareOk)
		visited = append(visited, p.N)
		if p.N == 2 {
			return &env // keep only this one.
		}
		return nil
	})

	require.Equal(t, []vrid.OpNumber{1, 2, 3}, visited, "SelectAll must visit every envelope")
	require.Equal(t, 1, m.Len())

	var remaining = m.DrainInbound()
	require.Len(t, remaining, 1)
	require.Equal(t, vrid.OpNumber(2), remaining[0].Payload.(vrmsg.PrepareOk).N)
}

func TestVisitDoesNotMutateQueue(t *testing.T) {
	var m = New(testSelf())
	deliverN(m, 1, 2)

	var count int
	m.Visit(func(from vrmsg.Address, env vrmsg.Envelope) { count++ })

	require.Equal(t, 2, count)
	require.Equal(t, 2, m.Len(), "Visit must leave the queue untouched")
}

func TestDrainInboundEmptiesQueueInFIFOOrder(t *testing.T) {
	var m = New(testSelf())
	deliverN(m, 1, 2, 3)

	var drained = m.DrainInbound()
	require.Len(t, drained, 3)
	require.True(t, m.IsEmpty())
	require.Equal(t, vrid.OpNumber(1), drained[0].Payload.(vrmsg.PrepareOk).N)
	require.Equal(t, vrid.OpNumber(3), drained[2].Payload.(vrmsg.PrepareOk).N)
}
