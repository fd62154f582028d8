package simulate

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/estuary/vr/go/health"
	"github.com/estuary/vr/go/vrid"
	"github.com/estuary/vr/go/vrmsg"
)

func testGroup(n int) vrid.GroupIdentifier { return vrid.GroupIdentifier{Token: "t", N: n} }

func TestBasicCommitReturnsReplyToClient(t *testing.T) {
	var h, err = New(Config{Group: testGroup(3), Rand: rand.New(rand.NewSource(1))})
	require.NoError(t, err)

	h.SubmitRequest("client-a", 1, []byte("SET x 1"))
	require.NoError(t, h.DriveToEmpty())

	var replies = h.DrainClient("client-a")
	require.Len(t, replies, 1)
	var reply, ok = replies[0].Payload.(vrmsg.Reply)
	require.True(t, ok)
	require.Equal(t, []byte("OK"), reply.Result)
}

func TestConcurrentRequestFromSameClientIsRejected(t *testing.T) {
	var h, err = New(Config{Group: testGroup(3), Rand: rand.New(rand.NewSource(2))})
	require.NoError(t, err)

	h.SubmitRequest("client-a", 1, []byte("SET x 1"))
	h.SubmitRequest("client-a", 2, []byte("SET x 2"))
	require.NoError(t, h.DriveToEmpty())

	var replies = h.DrainClient("client-a")
	require.Len(t, replies, 2)

	var kinds = map[vrmsg.PayloadKind]int{}
	for _, env := range replies {
		kinds[env.Payload.Kind()]++
	}
	require.Equal(t, 1, kinds[vrmsg.KindReply])
	require.Equal(t, 1, kinds[vrmsg.KindConcurrentRequest])
}

func TestViewChangeElectsNewPrimaryAfterCrash(t *testing.T) {
	var h, err = New(Config{
		Group:   testGroup(3),
		Rand:    rand.New(rand.NewSource(3)),
		CrashAt: map[int]int{1: 0}, // crash replica 0 (primary of view 0) before round 1.
		// Every surviving replica's detector reports the crashed primary Unhealthy.
		Detector: func() health.Detector {
			var f = health.NewFake()
			f.Set(0, health.Unhealthy)
			return f
		},
	})
	require.NoError(t, err)

	h.SubmitRequest("client-a", 1, []byte("SET x 1"))
	require.NoError(t, h.Run(30))
	require.NoError(t, h.DriveToEmpty())

	var rep, ok = h.ReplicaByIndex(1)
	require.True(t, ok)
	require.Equal(t, vrid.View(1), rep.View(), "view must have advanced past the crashed primary's view")

	var rep2, ok2 = h.ReplicaByIndex(2)
	require.True(t, ok2)
	require.Equal(t, rep.View(), rep2.View(), "surviving replicas converge on the same view")
}

func TestRestartedReplicaRecoversAndRejoins(t *testing.T) {
	var h, err = New(Config{
		Group:     testGroup(3),
		Rand:      rand.New(rand.NewSource(4)),
		CrashAt:   map[int]int{2: 1},
		RestartAt: map[int]int{4: 1},
	})
	require.NoError(t, err)

	h.SubmitRequest("client-a", 1, []byte("SET x 1"))
	require.NoError(t, h.Run(15))
	require.NoError(t, h.DriveToEmpty())

	var rep, ok = h.ReplicaByIndex(1)
	require.True(t, ok)
	require.Equal(t, "normal", rep.Status().String())
}

func TestStateTransferCatchesUpAbsentBackup(t *testing.T) {
	var h, err = New(Config{
		Group:     testGroup(3),
		Rand:      rand.New(rand.NewSource(5)),
		CrashAt:   map[int]int{1: 1},
		RestartAt: map[int]int{6: 1},
	})
	require.NoError(t, err)

	h.SubmitRequest("client-a", 1, []byte("SET x 1"))
	require.NoError(t, h.Run(3))
	h.SubmitRequest("client-a", 2, []byte("SET x 2"))
	h.SubmitRequest("client-a", 3, []byte("SET x 3"))
	require.NoError(t, h.Run(10))
	require.NoError(t, h.DriveToEmpty())

	var rep, ok = h.ReplicaByIndex(1)
	require.True(t, ok)
	require.Equal(t, vrid.OpNumber(3), rep.Committed(), "restarted replica must catch up via state transfer")
}

func TestNetworkFaultsStillConverge(t *testing.T) {
	var h, err = New(Config{
		Group:   testGroup(3),
		Rand:    rand.New(rand.NewSource(6)),
		Network: NetworkFaults{DropProbability: 0.2, DuplicateProbability: 0.2},
	})
	require.NoError(t, err)

	for i := vrid.RequestIdentifier(1); i <= 5; i++ {
		h.SubmitRequest("client-a", i, []byte("SET x 1"))
		require.NoError(t, h.Run(15))
	}
	require.NoError(t, h.DriveToEmpty())

	for i := 0; i < 3; i++ {
		var rep, ok = h.ReplicaByIndex(i)
		require.True(t, ok)
		require.Equal(t, vrid.OpNumber(5), rep.Committed(), "replica %d must reach full commit despite noise", i)
	}
}
