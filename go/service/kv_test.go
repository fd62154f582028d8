package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKVSetGetDel(t *testing.T) {
	var svc, err = NewKV(nil)
	require.NoError(t, err)

	var reply, invokeErr = svc.Invoke([]byte("SET x 1"), nil)
	require.NoError(t, invokeErr)
	require.Equal(t, []byte("OK"), reply)

	reply, invokeErr = svc.Invoke([]byte("GET x"), nil)
	require.NoError(t, invokeErr)
	require.Equal(t, []byte("1"), reply)

	reply, invokeErr = svc.Invoke([]byte("DEL x"), nil)
	require.NoError(t, invokeErr)
	require.Equal(t, []byte("OK"), reply)

	reply, invokeErr = svc.Invoke([]byte("GET x"), nil)
	require.NoError(t, invokeErr)
	require.Equal(t, []byte(""), reply)
}

func TestKVPredictIsAlwaysEmpty(t *testing.T) {
	var svc, _ = NewKV(nil)
	var prediction, err = svc.Predict([]byte("SET x 1"))
	require.NoError(t, err)
	require.Nil(t, prediction)
}

func TestKVInvokeRejectsMalformedOperations(t *testing.T) {
	var svc, _ = NewKV(nil)

	var _, err = svc.Invoke([]byte(""), nil)
	require.Error(t, err)

	_, err = svc.Invoke([]byte("SET onlykey"), nil)
	require.Error(t, err)

	_, err = svc.Invoke([]byte("NOPE x"), nil)
	require.Error(t, err)
}

func TestKVCheckpointRoundTripsThroughNewKV(t *testing.T) {
	var svc, _ = NewKV(nil)
	svc.Invoke([]byte("SET x 1"), nil)
	svc.Invoke([]byte("SET y 2"), nil)

	var snapshot, err = svc.Checkpoint()
	require.NoError(t, err)

	var restored, restoreErr = NewKV(snapshot)
	require.NoError(t, restoreErr)

	var reply, invokeErr = restored.Invoke([]byte("GET y"), nil)
	require.NoError(t, invokeErr)
	require.Equal(t, []byte("2"), reply)
}
