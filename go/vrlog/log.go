// Package vrlog holds the replicated operation log, the per-client request
// cache that guarantees at-most-once execution, and the NonVolatileState
// contract that survives a replica restart (spec §3, §4.5).
package vrlog

import (
	"github.com/pkg/errors"

	"github.com/estuary/vr/go/vrid"
	"github.com/estuary/vr/go/vrmsg"
)

// Log is the dense, 1-indexed, append-mostly sequence of LogRecords. It is
// never overwritten within a view; only a view change or a completed
// Recovery may replace it wholesale, and only down to the locally-known committed position (spec §9,
// "log truncation ... should preserve committed entries").
type Log struct {
	entries []vrmsg.LogRecord
}

// Len returns the highest OpNumber present in the log.
func (l *Log) Len() vrid.OpNumber { return vrid.OpNumber(len(l.entries)) }

// Has reports whether position n is present.
func (l *Log) Has(n vrid.OpNumber) bool { return n >= 1 && n <= l.Len() }

// At returns the record at position n. The caller must have checked Has(n).
func (l *Log) At(n vrid.OpNumber) vrmsg.LogRecord { return l.entries[n-1] }

// Append adds rec as the new final entry and returns its OpNumber.
func (l *Log) Append(rec vrmsg.LogRecord) vrid.OpNumber {
	l.entries = append(l.entries, rec)
	return l.Len()
}

// Suffix returns a copy of entries after (exclusive) OpNumber n.
func (l *Log) Suffix(n vrid.OpNumber) []vrmsg.LogRecord {
	if n >= l.Len() {
		return nil
	}
	var out = make([]vrmsg.LogRecord, l.Len()-n)
	copy(out, l.entries[n:])
	return out
}

// Snapshot returns a defensive copy of the whole log, e.g. for DoViewChange
// or StartView payloads.
func (l *Log) Snapshot() []vrmsg.LogRecord {
	var out = make([]vrmsg.LogRecord, len(l.entries))
	copy(out, l.entries)
	return out
}

// ErrWouldTruncateCommitted is returned by Replace when the candidate log is
// shorter than the already-committed prefix this replica knows about.
var ErrWouldTruncateCommitted = errors.New("candidate log is shorter than local committed position")

// Replace wholesale-replaces the log with entries, as happens when a replica
// adopts a StartView/DoViewChange log or a Recovery donor's log (a
// state-transfer NewState suffix goes through AppendSuffix instead). It refuses to adopt a log that would drop below localCommitted,
// per spec §9's safe rule.
func (l *Log) Replace(entries []vrmsg.LogRecord, localCommitted vrid.OpNumber) error {
	if vrid.OpNumber(len(entries)) < localCommitted {
		return errors.Wrapf(ErrWouldTruncateCommitted, "candidate len=%d committed=%d", len(entries), localCommitted)
	}
	l.entries = append([]vrmsg.LogRecord(nil), entries...)
	return nil
}

// AppendSuffix appends a state-transfer suffix onto the end of the log. The
// caller (the replica's state-transfer handler) is responsible for having
// verified alignment: the donor's reported base OpNumber must equal l.Len().
func (l *Log) AppendSuffix(suffix []vrmsg.LogRecord) {
	l.entries = append(l.entries, suffix...)
}
