package service

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// KV is a reference deterministic key/value Service. Operations are
// whitespace-separated ASCII commands:
//
//	SET <key> <value>   -> reply "OK"
//	GET <key>            -> reply the value, or "" if unset
//	DEL <key>            -> reply "OK"
//
// KV needs no non-deterministic input, so Predict always returns an empty
// prediction (spec §4.2/§9: predictions are mandatory to call, but a
// service whose Invoke is already deterministic may return a no-op one).
type KV struct {
	values map[string]string
}

var _ Service = (*KV)(nil)

// NewKV is a Factory constructing KV from an optional JSON-encoded
// snapshot produced by a prior Checkpoint call.
func NewKV(snapshot []byte) (Service, error) {
	var kv = &KV{values: make(map[string]string)}
	if len(snapshot) == 0 {
		return kv, nil
	}
	if err := json.Unmarshal(snapshot, &kv.values); err != nil {
		return nil, errors.Wrap(err, "decoding KV checkpoint")
	}
	return kv, nil
}

func (kv *KV) Predict([]byte) ([]byte, error) { return nil, nil }

func (kv *KV) Invoke(operation, _ []byte) ([]byte, error) {
	var fields = strings.Fields(string(operation))
	if len(fields) == 0 {
		return nil, errors.New("empty KV operation")
	}
	switch strings.ToUpper(fields[0]) {
	case "SET":
		if len(fields) != 3 {
			return nil, errors.Errorf("SET requires key and value, got %q", operation)
		}
		kv.values[fields[1]] = fields[2]
		return []byte("OK"), nil
	case "GET":
		if len(fields) != 2 {
			return nil, errors.Errorf("GET requires a key, got %q", operation)
		}
		return []byte(kv.values[fields[1]]), nil
	case "DEL":
		if len(fields) != 2 {
			return nil, errors.Errorf("DEL requires a key, got %q", operation)
		}
		delete(kv.values, fields[1])
		return []byte("OK"), nil
	default:
		return nil, errors.Errorf("unknown KV command %q", fields[0])
	}
}

func (kv *KV) Checkpoint() ([]byte, error) {
	return json.Marshal(kv.values)
}
