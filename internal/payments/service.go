// Package payments orchestrates wallet operations against the ledger:
// transfers, payment requests, savings locks and scheduled payments. It owns
// the decimal-to-base-unit conversion and the approve-then-act dance;
// callers above this line never see allowances.
package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/xaviersharwin10/mnee-chat/internal/custody"
	"github.com/xaviersharwin10/mnee-chat/internal/duration"
	"github.com/xaviersharwin10/mnee-chat/internal/ledger"
)

var (
	// ErrInvalidAmount indicates a non-positive amount or one with more
	// fractional digits than the token supports.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidDuration indicates duration text the grammar rejects.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrFaucetUnavailable indicates neither the custody faucet nor a funded
	// sponsor can dispense tokens.
	ErrFaucetUnavailable = errors.New("faucet unavailable")
)

// maxUint256 is the unlimited-approval amount for schedules.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Config carries the orchestrator's collaborators. Requests, Locks and
// Schedules may be nil: the matching feature is then permanently disabled
// and its operations return ledger.ErrNotConfigured.
type Config struct {
	Token     ledger.Token
	Requests  ledger.Requests
	Locks     ledger.Locks
	Schedules ledger.Schedules
	Backend   custody.Backend
	Network   string
	// Sponsor is the address funding faucet fallbacks and keeper gas.
	Sponsor      string
	FaucetAmount decimal.Decimal
	Logger       *slog.Logger
}

// Service is the transaction orchestrator.
type Service struct {
	token        ledger.Token
	requests     ledger.Requests
	locks        ledger.Locks
	schedules    ledger.Schedules
	backend      custody.Backend
	network      string
	sponsor      string
	faucetAmount decimal.Decimal
	logger       *slog.Logger
}

// NewService constructs the orchestrator.
func NewService(cfg Config) *Service {
	if cfg.FaucetAmount.IsZero() {
		cfg.FaucetAmount = decimal.NewFromInt(10)
	}
	return &Service{
		token:        cfg.Token,
		requests:     cfg.Requests,
		locks:        cfg.Locks,
		schedules:    cfg.Schedules,
		backend:      cfg.Backend,
		network:      cfg.Network,
		sponsor:      cfg.Sponsor,
		faucetAmount: cfg.FaucetAmount,
		logger:       cfg.Logger.With("component", "payments"),
	}
}

// CreateResult reports a newly created obligation. ID is ledger.PendingID
// when the creation event could not be observed in time.
type CreateResult struct {
	ID     int64
	TxHash string
}

// RequestLists groups the two request views a wallet owner cares about.
type RequestLists struct {
	Incoming []ledger.PaymentRequest
	Outgoing []ledger.PaymentRequest
}

// toUnits converts a user-facing decimal amount to base units, rejecting
// non-positive amounts and sub-unit precision.
func (s *Service) toUnits(ctx context.Context, amount decimal.Decimal) (*big.Int, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	decimals, err := s.token.Decimals(ctx)
	if err != nil {
		return nil, err
	}
	shifted := amount.Shift(decimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, decimals)
	}
	return shifted.BigInt(), nil
}

// FromUnits converts base units back to a user-facing decimal amount.
func (s *Service) FromUnits(ctx context.Context, units *big.Int) (decimal.Decimal, error) {
	decimals, err := s.token.Decimals(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(units, -decimals), nil
}

// checkBalance fails fast before anything is submitted.
func (s *Service) checkBalance(ctx context.Context, address string, units *big.Int) error {
	balance, err := s.token.BalanceOf(ctx, address)
	if err != nil {
		return fmt.Errorf("check balance: %w", err)
	}
	if balance.Cmp(units) < 0 {
		return ledger.ErrInsufficientFunds
	}
	return nil
}

// ensureAllowance tops up the owner's approval toward a spender contract
// when it cannot cover units. Unlimited approvals are used for schedules so
// every future execution is covered by the single grant.
func (s *Service) ensureAllowance(ctx context.Context, owner, spender string, units *big.Int, unlimited bool) error {
	allowance, err := s.token.Allowance(ctx, owner, spender)
	if err != nil {
		return fmt.Errorf("check allowance: %w", err)
	}
	if allowance.Cmp(units) >= 0 {
		return nil
	}
	grant := units
	if unlimited {
		grant = maxUint256
	}
	txHash, err := s.token.Approve(ctx, owner, spender, grant)
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	s.logger.Info("approval submitted", "owner", owner, "spender", spender, "tx", txHash)
	return nil
}

// Balance reads the wallet's token balance.
func (s *Service) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	units, err := s.token.BalanceOf(ctx, address)
	if err != nil {
		return decimal.Zero, err
	}
	return s.FromUnits(ctx, units)
}

// Transfer moves tokens between two wallet addresses.
func (s *Service) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (string, error) {
	units, err := s.toUnits(ctx, amount)
	if err != nil {
		return "", err
	}
	if err := s.checkBalance(ctx, from, units); err != nil {
		return "", err
	}
	txHash, err := s.token.Transfer(ctx, from, to, units)
	if err != nil {
		return "", fmt.Errorf("transfer: %w", err)
	}
	s.logger.Info("transfer submitted", "from", from, "to", to, "amount", amount.String(), "tx", txHash)
	return txHash, nil
}

// CreateRequest records a payment request from requester toward payer.
func (s *Service) CreateRequest(ctx context.Context, requester, payer string, amount decimal.Decimal, note string) (CreateResult, error) {
	if s.requests == nil {
		return CreateResult{}, ledger.ErrNotConfigured
	}
	units, err := s.toUnits(ctx, amount)
	if err != nil {
		return CreateResult{}, err
	}
	id, txHash, err := s.requests.Create(ctx, requester, payer, units, note)
	if err != nil {
		return CreateResult{}, fmt.Errorf("create request: %w", err)
	}
	s.logger.Info("request created", "id", id, "requester", requester, "payer", payer, "tx", txHash)
	return CreateResult{ID: id, TxHash: txHash}, nil
}

// FulfillRequest pays an open request addressed to payer.
func (s *Service) FulfillRequest(ctx context.Context, payer string, id int64) (ledger.PaymentRequest, string, error) {
	if s.requests == nil {
		return ledger.PaymentRequest{}, "", ledger.ErrNotConfigured
	}
	req, err := s.requests.Get(ctx, id)
	if err != nil {
		return ledger.PaymentRequest{}, "", err
	}
	if req.Fulfilled {
		return req, "", ledger.ErrAlreadyFulfilled
	}
	if req.Cancelled {
		return req, "", ledger.ErrCancelled
	}
	if err := s.checkBalance(ctx, payer, req.Amount); err != nil {
		return req, "", err
	}
	if err := s.ensureAllowance(ctx, payer, s.requests.Address(), req.Amount, false); err != nil {
		return req, "", err
	}
	txHash, err := s.requests.Fulfill(ctx, payer, id)
	if err != nil {
		return req, "", fmt.Errorf("fulfill request %d: %w", id, err)
	}
	s.logger.Info("request fulfilled", "id", id, "payer", payer, "tx", txHash)
	return req, txHash, nil
}

// CancelRequest withdraws an open request the requester created.
func (s *Service) CancelRequest(ctx context.Context, requester string, id int64) (string, error) {
	if s.requests == nil {
		return "", ledger.ErrNotConfigured
	}
	req, err := s.requests.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if req.Fulfilled {
		return "", ledger.ErrAlreadyFulfilled
	}
	if req.Cancelled {
		return "", ledger.ErrCancelled
	}
	txHash, err := s.requests.Cancel(ctx, requester, id)
	if err != nil {
		return "", fmt.Errorf("cancel request %d: %w", id, err)
	}
	return txHash, nil
}

// ListRequests returns requests addressed to and created by the address.
func (s *Service) ListRequests(ctx context.Context, address string) (RequestLists, error) {
	if s.requests == nil {
		return RequestLists{}, ledger.ErrNotConfigured
	}
	incoming, err := s.requests.PendingForPayer(ctx, address)
	if err != nil {
		return RequestLists{}, fmt.Errorf("list incoming: %w", err)
	}
	outgoing, err := s.requests.ByRequester(ctx, address)
	if err != nil {
		return RequestLists{}, fmt.Errorf("list outgoing: %w", err)
	}
	return RequestLists{Incoming: incoming, Outgoing: outgoing}, nil
}

// CreateLock escrows tokens until the parsed duration elapses. The interval
// is validated before any network call.
func (s *Service) CreateLock(ctx context.Context, owner string, amount decimal.Decimal, durationText, note string) (CreateResult, duration.Interval, error) {
	if s.locks == nil {
		return CreateResult{}, duration.Interval{}, ledger.ErrNotConfigured
	}
	ivl, err := duration.Parse(durationText)
	if err != nil {
		return CreateResult{}, duration.Interval{}, fmt.Errorf("%w: %q", ErrInvalidDuration, durationText)
	}
	units, err := s.toUnits(ctx, amount)
	if err != nil {
		return CreateResult{}, ivl, err
	}
	if err := s.checkBalance(ctx, owner, units); err != nil {
		return CreateResult{}, ivl, err
	}
	if err := s.ensureAllowance(ctx, owner, s.locks.Address(), units, false); err != nil {
		return CreateResult{}, ivl, err
	}
	id, txHash, err := s.locks.Create(ctx, owner, units, ivl.Seconds, note)
	if err != nil {
		return CreateResult{}, ivl, fmt.Errorf("create lock: %w", err)
	}
	s.logger.Info("lock created", "id", id, "owner", owner, "seconds", ivl.Seconds, "tx", txHash)
	return CreateResult{ID: id, TxHash: txHash}, ivl, nil
}

// WithdrawLock pays out an expired lock back to its owner.
func (s *Service) WithdrawLock(ctx context.Context, owner string, id int64) (ledger.SavingsLock, string, error) {
	if s.locks == nil {
		return ledger.SavingsLock{}, "", ledger.ErrNotConfigured
	}
	lock, err := s.locks.Get(ctx, id)
	if err != nil {
		return ledger.SavingsLock{}, "", err
	}
	if lock.Withdrawn {
		return lock, "", ledger.ErrAlreadyWithdrawn
	}
	ok, err := s.locks.CanWithdraw(ctx, id)
	if err != nil {
		return lock, "", err
	}
	if !ok {
		return lock, "", ledger.ErrLocked
	}
	txHash, err := s.locks.Withdraw(ctx, owner, id)
	if err != nil {
		return lock, "", fmt.Errorf("withdraw lock %d: %w", id, err)
	}
	s.logger.Info("lock withdrawn", "id", id, "owner", owner, "tx", txHash)
	return lock, txHash, nil
}

// ListLocks returns the owner's undrawn locks.
func (s *Service) ListLocks(ctx context.Context, owner string) ([]ledger.SavingsLock, error) {
	if s.locks == nil {
		return nil, ledger.ErrNotConfigured
	}
	return s.locks.ActiveFor(ctx, owner)
}

// CreateSchedule sets up a recurring payment. numPayments 0 means unlimited.
// The sender grants an unlimited approval so every future execution is
// covered.
func (s *Service) CreateSchedule(ctx context.Context, sender, recipient string, amount decimal.Decimal, intervalText string, numPayments int64, note string) (CreateResult, duration.Interval, error) {
	if s.schedules == nil {
		return CreateResult{}, duration.Interval{}, ledger.ErrNotConfigured
	}
	ivl, err := duration.Parse(intervalText)
	if err != nil {
		return CreateResult{}, duration.Interval{}, fmt.Errorf("%w: %q", ErrInvalidDuration, intervalText)
	}
	units, err := s.toUnits(ctx, amount)
	if err != nil {
		return CreateResult{}, ivl, err
	}
	if err := s.checkBalance(ctx, sender, units); err != nil {
		return CreateResult{}, ivl, err
	}
	if err := s.ensureAllowance(ctx, sender, s.schedules.Address(), units, true); err != nil {
		return CreateResult{}, ivl, err
	}
	id, txHash, err := s.schedules.Create(ctx, sender, recipient, units, ivl.Seconds, numPayments, note)
	if err != nil {
		return CreateResult{}, ivl, fmt.Errorf("create schedule: %w", err)
	}
	s.logger.Info("schedule created", "id", id, "sender", sender, "recipient", recipient, "seconds", ivl.Seconds, "tx", txHash)
	return CreateResult{ID: id, TxHash: txHash}, ivl, nil
}

// CancelSchedule deactivates a schedule the sender created.
func (s *Service) CancelSchedule(ctx context.Context, sender string, id int64) (string, error) {
	if s.schedules == nil {
		return "", ledger.ErrNotConfigured
	}
	sched, err := s.schedules.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !sched.Active {
		return "", ledger.ErrInactive
	}
	txHash, err := s.schedules.Cancel(ctx, sender, id)
	if err != nil {
		return "", fmt.Errorf("cancel schedule %d: %w", id, err)
	}
	return txHash, nil
}

// ListSchedules returns the sender's active schedules.
func (s *Service) ListSchedules(ctx context.Context, sender string) ([]ledger.ScheduledPayment, error) {
	if s.schedules == nil {
		return nil, ledger.ErrNotConfigured
	}
	return s.schedules.ActiveBySender(ctx, sender)
}

// Faucet dispenses demo tokens to an address: first through the custody
// provider's faucet, then by a sponsor transfer when the backend has none.
func (s *Service) Faucet(ctx context.Context, address string) (decimal.Decimal, string, error) {
	txHash, err := s.backend.RequestFaucet(ctx, address, s.network, "mnee")
	if err == nil {
		return s.faucetAmount, txHash, nil
	}
	if !errors.Is(err, custody.ErrUnsupported) {
		return decimal.Zero, "", fmt.Errorf("faucet: %w", err)
	}
	if s.sponsor == "" {
		return decimal.Zero, "", ErrFaucetUnavailable
	}
	txHash, err = s.Transfer(ctx, s.sponsor, address, s.faucetAmount)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("sponsor faucet: %w", err)
	}
	return s.faucetAmount, txHash, nil
}
