package vrmsg

import "github.com/estuary/vr/go/vrid"

// PayloadKind names one of the taxonomy's tagged variants, so role handlers
// can switch exhaustively without a type assertion chain.
type PayloadKind int

const (
	KindRequest PayloadKind = iota
	KindReply
	KindPrepare
	KindPrepareOk
	KindCommit
	KindStartViewChange
	KindDoViewChange
	KindStartView
	KindGetState
	KindNewState
	KindRecovery
	KindRecoveryResponse
	KindOutdatedView
	KindOutdatedRequest
	KindConcurrentRequest
)

func (k PayloadKind) String() string {
	switch k {
	case KindRequest:
		return "Request"
	case KindReply:
		return "Reply"
	case KindPrepare:
		return "Prepare"
	case KindPrepareOk:
		return "PrepareOk"
	case KindCommit:
		return "Commit"
	case KindStartViewChange:
		return "StartViewChange"
	case KindDoViewChange:
		return "DoViewChange"
	case KindStartView:
		return "StartView"
	case KindGetState:
		return "GetState"
	case KindNewState:
		return "NewState"
	case KindRecovery:
		return "Recovery"
	case KindRecoveryResponse:
		return "RecoveryResponse"
	case KindOutdatedView:
		return "OutdatedView"
	case KindOutdatedRequest:
		return "OutdatedRequest"
	case KindConcurrentRequest:
		return "ConcurrentRequest"
	default:
		return "Unknown"
	}
}

// Payload is the sum type of every message the engine sends or receives.
// Implementations are exhaustively listed below; Kind() lets a handler
// switch on payload shape without a type assertion.
type Payload interface {
	Kind() PayloadKind
}

// LogRecord is a single logged operation: the client request plus whatever
// prediction the primary attached at prepare time (§4.2).
type LogRecord struct {
	Client     vrid.ClientIdentifier
	RequestID  vrid.RequestIdentifier
	Operation  []byte
	Prediction []byte
}

// Request is a client's operation submission.
type Request struct {
	Client    vrid.ClientIdentifier
	RequestID vrid.RequestIdentifier
	Operation []byte
}

func (Request) Kind() PayloadKind { return KindRequest }

// Reply carries a (possibly cached) result back to the client that issued
// RequestID.
type Reply struct {
	RequestID vrid.RequestIdentifier
	Result    []byte
}

func (Reply) Kind() PayloadKind { return KindReply }

// Prepare is the primary's proposal of a new log entry at OpNumber N.
type Prepare struct {
	N         vrid.OpNumber
	Committed vrid.OpNumber
	Entry     LogRecord
}

func (Prepare) Kind() PayloadKind { return KindPrepare }

// PrepareOk is a backup's vote to prepare N.
type PrepareOk struct {
	N    vrid.OpNumber
	From int
}

func (PrepareOk) Kind() PayloadKind { return KindPrepareOk }

// Commit is the primary's notice (and idle heartbeat) that Committed has
// advanced.
type Commit struct {
	Committed vrid.OpNumber
}

func (Commit) Kind() PayloadKind { return KindCommit }

// StartViewChange is the mandatory preliminary round before DoViewChange
// (§4.3 Open Question resolution).
type StartViewChange struct {
	From int
}

func (StartViewChange) Kind() PayloadKind { return KindStartViewChange }

// DoViewChange carries a backup's log to the new primary of its view.
type DoViewChange struct {
	From      int
	Log       []LogRecord
	Committed vrid.OpNumber
}

func (DoViewChange) Kind() PayloadKind { return KindDoViewChange }

// StartView announces the winning log of a new view.
type StartView struct {
	Log       []LogRecord
	Committed vrid.OpNumber
}

func (StartView) Kind() PayloadKind { return KindStartView }

// GetState requests a log suffix from a peer, for state transfer.
type GetState struct {
	OpNumber vrid.OpNumber
	From     int
}

func (GetState) Kind() PayloadKind { return KindGetState }

// NewState is the state-transfer response: the log suffix after OpNumber,
// plus the donor's latest op number and commit point.
type NewState struct {
	AfterOpNumber vrid.OpNumber
	Suffix        []LogRecord
	Latest        vrid.OpNumber
	Committed     vrid.OpNumber
}

func (NewState) Kind() PayloadKind { return KindNewState }

// Recovery announces a restarting replica's fresh incarnation.
type Recovery struct {
	From  int
	Nonce string
}

func (Recovery) Kind() PayloadKind { return KindRecovery }

// RecoveryResponse answers a Recovery with enough state to rejoin. The
// ClientTable is deliberately not carried here: the recovering replica
// reconstructs it by replaying Log from an empty service checkpoint
// (spec §9), so there is no second representation to keep equivalent.
type RecoveryResponse struct {
	From      int
	IsPrimary bool
	Nonce     string
	View      vrid.View
	Log       []LogRecord
	Committed vrid.OpNumber
}

func (RecoveryResponse) Kind() PayloadKind { return KindRecoveryResponse }

// OutdatedView tells a sender that its view is stale; View is the
// receiver's authoritative view number (carried on the Envelope).
type OutdatedView struct{}

func (OutdatedView) Kind() PayloadKind { return KindOutdatedView }

// OutdatedRequest tells a client that RequestID s is older than the
// last-seen request for its client identifier.
type OutdatedRequest struct {
	Seen vrid.RequestIdentifier
}

func (OutdatedRequest) Kind() PayloadKind { return KindOutdatedRequest }

// ConcurrentRequest tells a client it already has a different in-flight
// request outstanding.
type ConcurrentRequest struct {
	Seen vrid.RequestIdentifier
}

func (ConcurrentRequest) Kind() PayloadKind { return KindConcurrentRequest }
