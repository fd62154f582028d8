package vrmsg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPayloadKindStringCoversEveryVariant(t *testing.T) {
	var payloads = []Payload{
		Request{}, Reply{}, Prepare{}, PrepareOk{}, Commit{},
		StartViewChange{}, DoViewChange{}, StartView{},
		GetState{}, NewState{}, Recovery{}, RecoveryResponse{},
		OutdatedView{}, OutdatedRequest{}, ConcurrentRequest{},
	}
	var seen = make(map[string]bool, len(payloads))
	for _, p := range payloads {
		var s = p.Kind().String()
		require.NotEqual(t, "Unknown", s)
		require.False(t, seen[s], "duplicate Kind string %q", s)
		seen[s] = true
	}
}

func TestUnknownPayloadKindString(t *testing.T) {
	require.Equal(t, "Unknown", PayloadKind(999).String())
}
