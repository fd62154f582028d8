package replica

import "github.com/pkg/errors"

// ErrNonVolatileSaveFailed is returned when a durable write to the
// NonVolatileStore fails. Spec §7 names this the one fatal error kind in
// the engine: every other error is local and recoverable by retry or by
// the protocol's own convergence, but a replica that cannot durably record
// a view bump must not go on to act as if it had, since a subsequent crash
// would lose the fact it already voted at that view.
var ErrNonVolatileSaveFailed = errors.New("non-volatile state save failed")
