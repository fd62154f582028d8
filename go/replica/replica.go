// Package replica implements the Viewstamped Replication state machine:
// a single replica's Normal, ViewChange, and Recovering procedures, driven
// entirely by Poll calls from a Driver (spec §3-§9). The package has no
// internal timers or goroutines; every liveness decision comes from a
// health.Detector reading, and every poll performs one bounded unit of
// work before returning.
package replica

import (
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/estuary/vr/go/driver"
	"github.com/estuary/vr/go/health"
	"github.com/estuary/vr/go/mailbox"
	"github.com/estuary/vr/go/service"
	"github.com/estuary/vr/go/vrid"
	"github.com/estuary/vr/go/vrlog"
	"github.com/estuary/vr/go/vrmsg"
)

// Config holds everything a Replica needs at construction. Store, Detector,
// and ServiceFactory are the three seams spec §6 names as the engine's only
// required collaborators; a Driver is not one of them; it drives Poll from
// the outside and is wired up separately.
type Config struct {
	Self            vrid.ReplicaIdentifier
	Store           vrlog.NonVolatileStore
	Detector        health.Detector
	ServiceFactory  service.Factory
	ClientTableSize int
	// CrashDetector is optional (spec §4.6); nil disables the heuristic.
	CrashDetector *CrashDetector
	// Logger overrides the default per-replica structured logger.
	Logger *log.Entry
}

// Replica is one member of a replication group. It is not safe for
// concurrent use; Poll must be called by a single thread of control.
type Replica struct {
	self            vrid.ReplicaIdentifier
	store           vrlog.NonVolatileStore
	detector        health.Detector
	serviceFactory  service.Factory
	svc             service.Service
	clientTableSize int
	clientTable     *vrlog.ClientTable
	log             vrlog.Log
	mailbox         *mailbox.Mailbox
	logger          *log.Entry

	status    Status
	view      vrid.View
	opNumber  vrid.OpNumber
	committed vrid.OpNumber

	// Primary-normal bookkeeping: acknowledgers seen per in-flight op number.
	acks map[vrid.OpNumber]map[int]struct{}

	// ViewChange bookkeeping, reset on every view bump.
	svcAcks          map[int]struct{}
	doViewChangeMsgs map[int]vrmsg.DoViewChange
	doViewChangeSent bool

	// Recovery bookkeeping.
	recoveryStarted   bool
	nonce             string
	recoveryResponses map[int]vrmsg.RecoveryResponse
	crashDetector     *CrashDetector

	// State-transfer bookkeeping: whether a GetState is outstanding.
	stateTransferPending bool
}

var _ driver.Pollable = (*Replica)(nil)

// New constructs a Replica from its durable state, per the lifecycle rule
// in spec §3: absent NonVolatileState starts fresh at (Normal, v=0);
// present state starts Recovering at the saved view, bumped by one if this
// replica was that view's primary (so it can never again act as primary of
// a view it might have already voted in before crashing).
func New(cfg Config) (*Replica, error) {
	var nvs, err = cfg.Store.Load()
	if err != nil {
		return nil, errors.Wrap(err, "loading non-volatile state")
	}

	var svc service.Service
	if svc, err = cfg.ServiceFactory(nil); err != nil {
		return nil, errors.Wrap(err, "constructing initial service state")
	}

	var logger = cfg.Logger
	if logger == nil {
		logger = log.WithField("replica", cfg.Self.String())
	}

	var r = &Replica{
		self:            cfg.Self,
		store:           cfg.Store,
		detector:        cfg.Detector,
		serviceFactory:  cfg.ServiceFactory,
		svc:             svc,
		clientTableSize: cfg.ClientTableSize,
		clientTable:     vrlog.NewClientTable(cfg.ClientTableSize),
		mailbox:         mailbox.New(cfg.Self),
		logger:          logger,
		crashDetector:   cfg.CrashDetector,
		acks:            make(map[vrid.OpNumber]map[int]struct{}),
	}

	if !nvs.HasLatestView {
		r.status = StatusNormal
		r.view = 0
	} else {
		r.status = StatusRecovering
		r.view = nvs.LatestView
		if r.self.IsPrimary(r.view) {
			r.view++
		}
		r.recoveryResponses = make(map[int]vrmsg.RecoveryResponse)
	}

	r.logger.WithFields(log.Fields{"status": r.status, "view": r.view}).Info("replica constructed")
	return r, nil
}

// Identifier implements driver.Pollable.
func (r *Replica) Identifier() vrid.ReplicaIdentifier { return r.self }

// Mailbox implements driver.Pollable.
func (r *Replica) Mailbox() *mailbox.Mailbox { return r.mailbox }

// Status reports the replica's current operating mode, mostly for tests
// and the CLI demo's status display.
func (r *Replica) Status() Status { return r.status }

// View reports the replica's current view.
func (r *Replica) View() vrid.View { return r.view }

// Committed reports the replica's current commit point.
func (r *Replica) Committed() vrid.OpNumber { return r.committed }

// CrashDecision exposes the optional CrashDetector's verdict, if wired and
// if it has reached one.
func (r *Replica) CrashDecision() (crashed, decided bool) {
	if r.crashDetector == nil {
		return false, false
	}
	return r.crashDetector.Decision()
}

// Poll performs exactly one bounded unit of work: the outdated-view
// preprocessor, then the status- and role-appropriate procedure (spec §4.7,
// §3). It returns a non-nil error for the fatal durable-save-failure case
// (spec §7) and when the service fails to execute or replay a committed
// operation; every protocol condition is absorbed into protocol state.
func (r *Replica) Poll() error {
	defer r.reportMetrics()

	r.handleOutdatedView()

	switch r.status {
	case StatusNormal:
		if r.self.IsPrimary(r.view) {
			return r.pollPrimaryNormal()
		}
		return r.pollBackupNormal()
	case StatusViewChange:
		return r.pollViewChange()
	case StatusRecovering:
		return r.pollRecovering()
	default:
		return fmt.Errorf("replica %s: unknown status %v", r.self, r.status)
	}
}

func (r *Replica) primaryID() vrid.ReplicaIdentifier {
	return vrid.ReplicaIdentifier{Group: r.self.Group, Index: r.self.Group.Primary(r.view)}
}

// handleOutdatedView implements spec §4.7: before any role-specific
// processing, every inbound envelope whose view is older than this
// replica's is answered with OutdatedView and discarded, regardless of
// status. Recovery and RecoveryResponse are exempt: recovery correlates by
// nonce, not by view ordering, and a recovering replica's view has
// typically already been spaced ahead of the group's (per New's lifecycle
// rule), which would otherwise make every legitimate RecoveryResponse look
// stale.
func (r *Replica) handleOutdatedView() {
	r.mailbox.SelectAll(func(from vrmsg.Address, env vrmsg.Envelope) *vrmsg.Envelope {
		switch env.Payload.Kind() {
		case vrmsg.KindRecovery, vrmsg.KindRecoveryResponse:
			return &env
		}
		if env.View < r.view {
			r.replyOutdatedView(from)
			return nil
		}
		return &env
	})
}

func (r *Replica) replyOutdatedView(from vrmsg.Address) {
	switch from.Kind {
	case vrmsg.AddressReplica:
		r.mailbox.Send(from.Replica, r.view, vrmsg.OutdatedView{})
	case vrmsg.AddressClient:
		r.mailbox.Reply(from.Client, r.view, vrmsg.OutdatedView{})
	}
}

// executeCommitted runs service.Invoke for every contiguous logged entry up
// to target that hasn't yet executed, advancing committed as it goes (spec
// §4.5). emitReplies is true only on the primary's commit path; backups
// (normal processing and state-transfer splicing) pass false, since they
// are executing entries they did not themselves receive the Request for.
// View-change and recovery catch-up replay through rebuildFromLog, which
// emits no replies either; clients resend and hit the repopulated
// ClientTable cache instead (spec §9).
func (r *Replica) executeCommitted(target vrid.OpNumber, emitReplies bool) error {
	for r.committed < target && r.log.Has(r.committed+1) {
		var n = r.committed + 1
		var entry = r.log.At(n)

		var reply, err = r.svc.Invoke(entry.Operation, entry.Prediction)
		if err != nil {
			return errors.Wrapf(err, "invoking committed operation at op number %d", n)
		}
		r.clientTable.SetReply(entry.Client, reply)
		if emitReplies {
			r.mailbox.Reply(entry.Client, r.view, vrmsg.Reply{RequestID: entry.RequestID, Result: reply})
		}
		r.committed = n
	}
	return nil
}

// rebuildFromLog resets the service to its initial state and replays every
// committed entry, repopulating the ClientTable as it goes (spec §9). It is
// called whenever the log is wholesale-replaced: completing a view change
// as the new primary, adopting a StartView as a backup, and adopting a
// donor's log during Recovery. State transfer's incremental suffix splice
// does not call this; it uses executeCommitted directly, since it only ever
// appends past the already-executed prefix.
func (r *Replica) rebuildFromLog() error {
	var svc, err = r.serviceFactory(nil)
	if err != nil {
		return errors.Wrap(err, "reconstructing service state")
	}
	r.svc = svc
	r.clientTable = vrlog.NewClientTable(r.clientTableSize)

	var executed vrid.OpNumber
	for executed < r.committed && r.log.Has(executed+1) {
		var n = executed + 1
		var entry = r.log.At(n)

		var reply, ierr = r.svc.Invoke(entry.Operation, entry.Prediction)
		if ierr != nil {
			return errors.Wrapf(ierr, "replaying committed operation at op number %d", n)
		}
		r.clientTable.Start(entry.Client, entry.RequestID)
		r.clientTable.SetReply(entry.Client, reply)
		executed = n
	}
	return nil
}

// persistView durably saves the replica's current view. Per spec §7 this
// is the engine's one fatal error path: a replica that cannot durably
// record a view bump must not proceed as though it had.
func (r *Replica) persistView() error {
	var nvs = vrlog.NonVolatileState{Replica: r.self, HasLatestView: true, LatestView: r.view}
	if err := r.store.Save(nvs); err != nil {
		r.logger.WithError(err).WithField("view", r.view).Error("durable non-volatile save failed")
		return fmt.Errorf("%w: %w", ErrNonVolatileSaveFailed, errors.Wrap(err, "saving non-volatile state"))
	}
	return nil
}
