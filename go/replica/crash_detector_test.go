package replica

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCrashDetectorUndecidedUntilEnoughSeen(t *testing.T) {
	var d = NewCrashDetector(testSelf(0))
	var _, decided = d.Decision()
	require.False(t, decided)

	d.ObserveRecovery(1)
	_, decided = d.Decision()
	require.False(t, decided, "group N=3 needs self plus two more sightings")
}

func TestCrashDetectorDecidesNotCrashedOnceEveryoneEchoes(t *testing.T) {
	var d = NewCrashDetector(testSelf(0))
	d.ObserveRecovery(1)
	d.ObserveRecovery(2)

	var crashed, decided = d.Decision()
	require.True(t, decided)
	require.False(t, crashed)
}

func TestCrashDetectorDecidesCrashedOnNonRecoverySighting(t *testing.T) {
	var d = NewCrashDetector(testSelf(0))
	d.ObserveRecovery(1)
	d.ObserveOther()

	var crashed, decided = d.Decision()
	require.True(t, decided)
	require.True(t, crashed)
}

func TestCrashDetectorDecisionIsFixedOnceReached(t *testing.T) {
	var d = NewCrashDetector(testSelf(0))
	d.ObserveOther() // decides crashed=true.
	d.ObserveRecovery(1)
	d.ObserveRecovery(2) // must not flip the decision back.

	var crashed, decided = d.Decision()
	require.True(t, decided)
	require.True(t, crashed)
}
