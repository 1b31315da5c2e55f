// Package intent turns raw chat text into typed commands. Deterministic
// pattern matchers run first so money-moving commands stay auditable; an
// optional NLP oracle catches free-form phrasing and is gated by a
// confidence threshold.
package intent

import "github.com/shopspring/decimal"

// Kind enumerates the commands the engine understands.
type Kind string

const (
	KindSend           Kind = "SEND"
	KindBalance        Kind = "BALANCE"
	KindAddress        Kind = "ADDRESS"
	KindDepositInfo    Kind = "DEPOSIT_INFO"
	KindCreateRequest  Kind = "CREATE_REQUEST"
	KindPayRequest     Kind = "PAY_REQUEST"
	KindCancelRequest  Kind = "CANCEL_REQUEST"
	KindMyRequests     Kind = "MY_REQUESTS"
	KindCreateLock     Kind = "CREATE_LOCK"
	KindUnlock         Kind = "UNLOCK"
	KindMyLocks        Kind = "MY_LOCKS"
	KindCreateSchedule Kind = "CREATE_SCHEDULE"
	KindCancelSchedule Kind = "CANCEL_SCHEDULE"
	KindMySchedules    Kind = "MY_SCHEDULES"
	KindHelp           Kind = "HELP"
	KindOther          Kind = "OTHER"
)

// Intent is a parsed command. Only the fields the kind calls for are set.
// Confidence is non-zero only when the intent came from the oracle.
type Intent struct {
	Kind       Kind
	Amount     decimal.Decimal
	Recipient  string
	Payer      string
	Duration   string
	Interval   string
	TargetID   int64
	Confidence float64
}

// known reports whether the oracle returned a kind the engine can dispatch.
func (k Kind) known() bool {
	switch k {
	case KindSend, KindBalance, KindAddress, KindDepositInfo,
		KindCreateRequest, KindPayRequest, KindCancelRequest, KindMyRequests,
		KindCreateLock, KindUnlock, KindMyLocks,
		KindCreateSchedule, KindCancelSchedule, KindMySchedules,
		KindHelp:
		return true
	}
	return false
}
