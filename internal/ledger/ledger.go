// Package ledger exposes the on-ledger contract surface the engine consumes:
// the token plus the payment-request, savings-lock and scheduled-payment
// contracts. Amounts cross this boundary as integer units scaled by token
// decimals; decimal conversion belongs to the caller.
package ledger

import (
	"context"
	"errors"
	"math/big"
	"time"
)

var (
	// ErrNotConfigured indicates a feature's contract address is not set; the
	// feature is permanently disabled for this process.
	ErrNotConfigured = errors.New("contract not configured")
	// ErrNotFound indicates an unknown request/lock/schedule id.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientFunds indicates the sender's balance cannot cover the
	// amount. Raised pre-flight, before anything is submitted.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientAllowance indicates the spender contract lacks approval.
	// Always remedied internally with an approval step, never user-facing.
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	// ErrAlreadyFulfilled indicates the payment request reached its terminal
	// fulfilled state.
	ErrAlreadyFulfilled = errors.New("request already fulfilled")
	// ErrCancelled indicates the payment request was cancelled.
	ErrCancelled = errors.New("request cancelled")
	// ErrAlreadyWithdrawn indicates the savings lock was already paid out.
	ErrAlreadyWithdrawn = errors.New("lock already withdrawn")
	// ErrLocked indicates the savings lock has not reached its unlock time.
	ErrLocked = errors.New("lock not expired")
	// ErrNotDue indicates the scheduled payment's next execution time is in
	// the future.
	ErrNotDue = errors.New("payment not due")
	// ErrInactive indicates the schedule was cancelled or ran out of
	// payments.
	ErrInactive = errors.New("schedule inactive")
)

// PendingID marks a creation whose authoritative id could not be recovered
// from the transaction's event before the receipt lookup timed out. The
// obligation exists on the ledger; only the id is unknown to the caller.
const PendingID int64 = 0

// PaymentRequest is a read-through projection of the request contract's
// state. Terminal on fulfilled XOR cancelled, immutable thereafter.
type PaymentRequest struct {
	ID        int64
	Requester string
	Payer     string
	Amount    *big.Int
	Note      string
	Fulfilled bool
	Cancelled bool
	CreatedAt time.Time
}

// SavingsLock is a projection of the lock contract's state. unlockTime is
// fixed at creation; withdrawal is irreversible.
type SavingsLock struct {
	ID         int64
	Owner      string
	Amount     *big.Int
	UnlockTime time.Time
	Withdrawn  bool
	Note       string
}

// ScheduledPayment is a projection of the schedule contract's state.
// RemainingPayments 0 means unlimited. Each execution advances
// NextPaymentTime by the interval.
type ScheduledPayment struct {
	ID                int64
	Sender            string
	Recipient         string
	Amount            *big.Int
	IntervalSeconds   int64
	NextPaymentTime   time.Time
	RemainingPayments int64
	Active            bool
	Note              string
}

// Token is the ERC-20 surface the engine uses.
type Token interface {
	Decimals(ctx context.Context) (int32, error)
	BalanceOf(ctx context.Context, address string) (*big.Int, error)
	Transfer(ctx context.Context, from, to string, units *big.Int) (string, error)
	Approve(ctx context.Context, owner, spender string, units *big.Int) (string, error)
	Allowance(ctx context.Context, owner, spender string) (*big.Int, error)
}

// Requests is the payment-request contract surface.
type Requests interface {
	// Address is the contract address, used as the approval spender.
	Address() string
	Create(ctx context.Context, requester, payer string, units *big.Int, note string) (id int64, txHash string, err error)
	Fulfill(ctx context.Context, payer string, id int64) (string, error)
	Cancel(ctx context.Context, requester string, id int64) (string, error)
	Get(ctx context.Context, id int64) (PaymentRequest, error)
	PendingForPayer(ctx context.Context, payer string) ([]PaymentRequest, error)
	ByRequester(ctx context.Context, requester string) ([]PaymentRequest, error)
}

// Locks is the savings-lock contract surface. NextID exposes the latest
// allocated id so the keeper can enumerate without an execution log.
type Locks interface {
	Address() string
	Create(ctx context.Context, owner string, units *big.Int, durationSeconds int64, note string) (id int64, txHash string, err error)
	Withdraw(ctx context.Context, from string, id int64) (string, error)
	Get(ctx context.Context, id int64) (SavingsLock, error)
	ActiveFor(ctx context.Context, owner string) ([]SavingsLock, error)
	CanWithdraw(ctx context.Context, id int64) (bool, error)
	NextID(ctx context.Context) (int64, error)
}

// Schedules is the scheduled-payment contract surface. Execute is submitted
// by the sponsor identity, not the schedule's sender.
type Schedules interface {
	Address() string
	Create(ctx context.Context, sender, recipient string, units *big.Int, intervalSeconds, numPayments int64, note string) (id int64, txHash string, err error)
	Execute(ctx context.Context, from string, id int64) (string, error)
	Cancel(ctx context.Context, sender string, id int64) (string, error)
	Get(ctx context.Context, id int64) (ScheduledPayment, error)
	ActiveBySender(ctx context.Context, sender string) ([]ScheduledPayment, error)
	IsPaymentDue(ctx context.Context, id int64) (bool, error)
	NextID(ctx context.Context) (int64, error)
}
