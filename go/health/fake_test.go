package health

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/estuary/vr/go/vrid"
)

func TestFakeDefaultsToNormal(t *testing.T) {
	var f = NewFake()
	var replica = vrid.ReplicaIdentifier{Group: vrid.GroupIdentifier{Token: "g", N: 3}, Index: 2}

	require.Equal(t, Normal, f.Detect(0, replica))
}

func TestFakeSetOverridesLevel(t *testing.T) {
	var f = NewFake()
	var replica = vrid.ReplicaIdentifier{Group: vrid.GroupIdentifier{Token: "g", N: 3}, Index: 2}

	f.Set(2, Unhealthy)
	require.Equal(t, Unhealthy, f.Detect(0, replica))
	require.Equal(t, Unhealthy, f.Detect(99, replica), "Fake ignores view entirely")
}

func TestLevelString(t *testing.T) {
	require.NotEmpty(t, Normal.String())
	require.NotEmpty(t, Suspect.String())
	require.NotEmpty(t, Unhealthy.String())
}
