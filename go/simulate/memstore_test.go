package simulate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/estuary/vr/go/vrid"
	"github.com/estuary/vr/go/vrlog"
)

func TestMemoryStoreFreshLoadIsZeroValue(t *testing.T) {
	var s = NewMemoryStore()
	var nvs, err = s.Load()
	require.NoError(t, err)
	require.False(t, nvs.HasLatestView)
}

func TestMemoryStoreSaveThenLoadRoundTrips(t *testing.T) {
	var s = NewMemoryStore()
	var self = vrid.ReplicaIdentifier{Group: vrid.GroupIdentifier{Token: "g", N: 3}, Index: 1}

	require.NoError(t, s.Save(vrlog.NonVolatileState{Replica: self, HasLatestView: true, LatestView: 4}))

	var nvs, err = s.Load()
	require.NoError(t, err)
	require.True(t, nvs.HasLatestView)
	require.Equal(t, vrid.View(4), nvs.LatestView)
}
