package replica

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/estuary/vr/go/health"
	"github.com/estuary/vr/go/service"
	"github.com/estuary/vr/go/vrid"
	"github.com/estuary/vr/go/vrlog"
)

// memStore is a minimal in-process vrlog.NonVolatileStore for unit tests
// that don't need the full simulation harness.
type memStore struct {
	state   vrlog.NonVolatileState
	present bool
}

func (s *memStore) Load() (vrlog.NonVolatileState, error) {
	if !s.present {
		return vrlog.NonVolatileState{}, nil
	}
	return s.state, nil
}

func (s *memStore) Save(nvs vrlog.NonVolatileState) error {
	s.state, s.present = nvs, true
	return nil
}

func testSelf(index int) vrid.ReplicaIdentifier {
	return vrid.ReplicaIdentifier{Group: vrid.GroupIdentifier{Token: "g", N: 3}, Index: index}
}

func newTestReplica(t *testing.T, index int, store vrlog.NonVolatileStore) *Replica {
	t.Helper()
	if store == nil {
		store = &memStore{}
	}
	var r, err = New(Config{
		Self:           testSelf(index),
		Store:          store,
		Detector:       health.NewFake(),
		ServiceFactory: service.NewKV,
	})
	require.NoError(t, err)
	return r
}

func TestNewStartsFreshReplicaAsNormalViewZero(t *testing.T) {
	var r = newTestReplica(t, 0, nil)
	require.Equal(t, StatusNormal, r.Status())
	require.Equal(t, vrid.View(0), r.View())
}

func TestNewStartsRecoveringFromPriorState(t *testing.T) {
	var store = &memStore{present: true, state: vrlog.NonVolatileState{HasLatestView: true, LatestView: 2}}
	var r = newTestReplica(t, 1, store) // index 1, not primary(2) = index 2

	require.Equal(t, StatusRecovering, r.Status())
	require.Equal(t, vrid.View(2), r.View())
}

func TestNewBumpsViewWhenRestartingAsPriorPrimary(t *testing.T) {
	// Group N=3, primary(3) = 3%3 = 0, so a restarting replica 0 at
	// LatestView=3 must never again act as that view's primary.
	var store = &memStore{present: true, state: vrlog.NonVolatileState{HasLatestView: true, LatestView: 3}}
	var r = newTestReplica(t, 0, store)

	require.Equal(t, StatusRecovering, r.Status())
	require.Equal(t, vrid.View(4), r.View())
}

func TestPollDispatchesPrimaryVsBackup(t *testing.T) {
	var primary = newTestReplica(t, 0, nil) // primary(0) == 0
	var backup = newTestReplica(t, 1, nil)

	require.NoError(t, primary.Poll())
	require.NoError(t, backup.Poll())
	require.Equal(t, StatusNormal, primary.Status())
	require.Equal(t, StatusNormal, backup.Status())
}

func TestPersistViewFailureIsFatal(t *testing.T) {
	var r = newTestReplica(t, 1, nil)
	r.store = failingStore{}

	var err = r.bumpToViewChange(1)
	require.ErrorIs(t, err, ErrNonVolatileSaveFailed)
}

type failingStore struct{}

func (failingStore) Load() (vrlog.NonVolatileState, error) { return vrlog.NonVolatileState{}, nil }
func (failingStore) Save(vrlog.NonVolatileState) error     { return assertError }

var assertError = errNotDurable{}

type errNotDurable struct{}

func (errNotDurable) Error() string { return "simulated durable write failure" }
