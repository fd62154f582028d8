// Package service defines the Service contract the engine invokes to run
// application logic deterministically (spec §4.2, §6), and supplies a
// reference key/value service used by tests, the simulation harness, and
// the CLI demo.
package service

// Service is the deterministic application the engine drives. Every hook
// is given and must return opaque byte blobs: the engine never interprets
// request, prediction, reply, or snapshot contents.
type Service interface {
	// Predict is called by the primary only, before broadcasting Prepare,
	// to capture any value that would otherwise make Invoke
	// non-deterministic across replicas (e.g. a wall-clock read).
	Predict(operation []byte) (prediction []byte, err error)
	// Invoke applies operation (with its prediction) and is called on
	// every replica once the operation commits. It must be pure given
	// (current state, operation, prediction).
	Invoke(operation, prediction []byte) (reply []byte, err error)
	// Checkpoint returns an opaque snapshot of current state, used by the
	// Recovery protocol and state transfer.
	Checkpoint() ([]byte, error)
}

// Factory constructs a fresh Service, optionally from a prior checkpoint.
// Passing a nil snapshot constructs the service's initial (empty) state.
type Factory func(snapshot []byte) (Service, error)
