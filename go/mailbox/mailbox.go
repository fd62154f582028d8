// Package mailbox implements the per-replica inbound/outbound envelope
// buffer described in spec §4.1: a scoped queue with selective consumption
// (select/select_all/visit) so role handlers can pattern-match on the next
// envelope while deferring ones that aren't yet applicable, without losing
// them or requiring a side "pending" buffer at each call site.
package mailbox

import (
	"container/list"

	"github.com/estuary/vr/go/vrid"
	"github.com/estuary/vr/go/vrmsg"
	"golang.org/x/net/trace"
)

// SelectFunc is called once per inbound envelope in delivery order. Returning
// a non-nil envelope re-queues it in place (stopping Select's iteration);
// returning nil discards it. SelectAll instead keeps iterating to the end,
// retaining every non-nil return in its original relative order.
type SelectFunc func(from vrmsg.Address, env vrmsg.Envelope) *vrmsg.Envelope

// VisitFunc is called once per inbound envelope, for non-destructive
// inspection; the mailbox is unchanged afterward.
type VisitFunc func(from vrmsg.Address, env vrmsg.Envelope)

// Mailbox is a single replica's inbound queue and outbound staging area.
// It is not safe for concurrent use: the replica that owns a Mailbox is
// polled by exactly one thread of control at a time (spec §5).
type Mailbox struct {
	self     vrid.ReplicaIdentifier
	inbound  *list.List
	outbound []vrmsg.Envelope
	events   trace.EventLog
}

// New returns an empty Mailbox for the replica identified by self.
func New(self vrid.ReplicaIdentifier) *Mailbox {
	return &Mailbox{
		self:    self,
		inbound: list.New(),
	}
}

// SetEventLog attaches an optional golang.org/x/net/trace.EventLog sink so a
// poll's mailbox activity is visible via the process's /debug/events page.
// Passing nil disables tracing (the default).
func (m *Mailbox) SetEventLog(events trace.EventLog) { m.events = events }

func (m *Mailbox) logf(format string, args ...any) {
	if m.events != nil {
		m.events.Printf(format, args...)
	}
}

// Deliver appends env to the inbound queue.
func (m *Mailbox) Deliver(env vrmsg.Envelope) {
	m.inbound.PushBack(env)
	m.logf("deliver from=%s kind=%s", env.From, env.Payload.Kind())
}

// IsEmpty reports whether the inbound queue holds no envelopes.
func (m *Mailbox) IsEmpty() bool { return m.inbound.Len() == 0 }

// Len returns the number of envelopes currently queued inbound.
func (m *Mailbox) Len() int { return m.inbound.Len() }

// DrainInbound removes and returns every inbound envelope, in FIFO order.
func (m *Mailbox) DrainInbound() []vrmsg.Envelope {
	var out = make([]vrmsg.Envelope, 0, m.inbound.Len())
	for e := m.inbound.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(vrmsg.Envelope))
	}
	m.inbound.Init()
	return out
}

// DrainOutbound removes and returns every staged outbound envelope.
func (m *Mailbox) DrainOutbound() []vrmsg.Envelope {
	var out = m.outbound
	m.outbound = nil
	return out
}

// Send stages a unicast envelope to a single replica.
func (m *Mailbox) Send(to vrid.ReplicaIdentifier, view vrid.View, payload vrmsg.Payload) {
	m.stage(vrmsg.Envelope{
		From:    vrmsg.ToReplica(m.self),
		To:      vrmsg.ToReplica(to),
		View:    view,
		Payload: payload,
	})
}

// Broadcast stages an envelope addressed to every other replica of the
// group; the Driver must not echo it back to self (spec §5).
func (m *Mailbox) Broadcast(view vrid.View, payload vrmsg.Payload) {
	m.stage(vrmsg.Envelope{
		From:    vrmsg.ToReplica(m.self),
		To:      vrmsg.ToGroup(m.self.Group),
		View:    view,
		Payload: payload,
	})
}

// Reply stages an envelope addressed to a client.
func (m *Mailbox) Reply(to vrid.ClientIdentifier, view vrid.View, payload vrmsg.Payload) {
	m.stage(vrmsg.Envelope{
		From:    vrmsg.ToReplica(m.self),
		To:      vrmsg.ToClient(to),
		View:    view,
		Payload: payload,
	})
}

func (m *Mailbox) stage(env vrmsg.Envelope) {
	m.outbound = append(m.outbound, env)
	m.logf("stage to=%s kind=%s", env.To, env.Payload.Kind())
}

// Select iterates inbound envelopes in arrival order, calling f for each.
// It stops at the first envelope f re-queues (returns non-nil for), leaving
// that envelope — and everything behind it — untouched at the front of the
// queue. This is the "ordered single-pass matching" shape: a handler that
// only wants to consume a contiguous run of ready envelopes from the head.
func (m *Mailbox) Select(f SelectFunc) {
	var e = m.inbound.Front()
	for e != nil {
		var env = e.Value.(vrmsg.Envelope)
		var next = e.Next()

		if result := f(env.From, env); result != nil {
			return
		}
		m.inbound.Remove(e)
		e = next
	}
}

// SelectAll iterates every inbound envelope to the end, calling f for each.
// Envelopes for which f returns non-nil are retained, in their original
// relative order; all others are discarded.
func (m *Mailbox) SelectAll(f SelectFunc) {
	var kept = list.New()
	for e := m.inbound.Front(); e != nil; e = e.Next() {
		var env = e.Value.(vrmsg.Envelope)
		if result := f(env.From, env); result != nil {
			kept.PushBack(*result)
		}
	}
	m.inbound = kept
}

// Visit non-destructively inspects every inbound envelope in FIFO order.
func (m *Mailbox) Visit(f VisitFunc) {
	for e := m.inbound.Front(); e != nil; e = e.Next() {
		var env = e.Value.(vrmsg.Envelope)
		f(env.From, env)
	}
}
