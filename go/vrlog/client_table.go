package vrlog

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/estuary/vr/go/vrid"
)

// ClientEntry is the per-client state the ClientTable tracks: the last
// request-id it has seen, and — once the matching operation has committed
// and executed — the cached reply for it (spec §3).
type ClientEntry struct {
	RequestID vrid.RequestIdentifier
	HasReply  bool
	Reply     []byte
}

// DefaultClientTableSize is used when a group doesn't configure a bound.
// Sized generously for a single-group demo/test workload; production
// embedders should size this to the expected active-client population.
const DefaultClientTableSize = 4096

// ClientTable maps ClientIdentifier to its ClientEntry. It is bounded by an
// LRU of recently-active clients (spec §3 expansion): evicting an entry only
// forgets the fast-path cache for a client that hasn't been heard from in a
// while, which is safe because at-most-once execution is a liveness/
// performance guarantee for live clients, not a safety requirement that must
// hold forever for clients that may never resend.
type ClientTable struct {
	cache *lru.Cache[vrid.ClientIdentifier, *ClientEntry]
}

// NewClientTable returns an empty ClientTable bounded to size entries.
func NewClientTable(size int) *ClientTable {
	if size <= 0 {
		size = DefaultClientTableSize
	}
	var cache, err = lru.New[vrid.ClientIdentifier, *ClientEntry](size)
	if err != nil {
		// Only non-positive sizes error, and size is normalized above.
		panic(err)
	}
	return &ClientTable{cache: cache}
}

// Lookup returns the tracked entry for c, if any.
func (t *ClientTable) Lookup(c vrid.ClientIdentifier) (ClientEntry, bool) {
	var e, ok = t.cache.Get(c)
	if !ok {
		return ClientEntry{}, false
	}
	return *e, true
}

// Start records that request r from client c is now in flight, overwriting
// whatever was previously tracked (spec §4.3: a strictly-newer request
// replaces the prior ClientTable entry).
func (t *ClientTable) Start(c vrid.ClientIdentifier, r vrid.RequestIdentifier) {
	t.cache.Add(c, &ClientEntry{RequestID: r})
}

// SetReply populates the cached reply for (c, last-seen request), called
// once the matching operation commits and executes (spec §4.5).
func (t *ClientTable) SetReply(c vrid.ClientIdentifier, reply []byte) {
	var e, ok = t.cache.Get(c)
	if !ok {
		// The client was evicted between Start and commit; re-synthesize an
		// entry from this commit so a resend can still hit cache.
		e = &ClientEntry{}
		t.cache.Add(c, e)
	}
	e.HasReply = true
	e.Reply = reply
}
