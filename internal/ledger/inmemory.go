package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
)

// Fixed facet addresses so approval bookkeeping works the same way it does
// against real contracts.
const (
	memRequestsAddress  = "0x00000000000000000000000000000000000000a1"
	memLocksAddress     = "0x00000000000000000000000000000000000000a2"
	memSchedulesAddress = "0x00000000000000000000000000000000000000a3"
)

// InMemory is a process-local ledger implementing the full contract surface.
// It backs tests and local development where no chain endpoint exists, and
// enforces the same preconditions the contracts do: balances, allowances,
// unlock times, due times.
type InMemory struct {
	mu       sync.Mutex
	now      func() time.Time
	decimals int32
	seq      int64

	balances   map[string]*big.Int
	allowances map[string]map[string]*big.Int

	requests      map[int64]*PaymentRequest
	nextRequestID int64

	locks      map[int64]*SavingsLock
	nextLockID int64

	schedules      map[int64]*ScheduledPayment
	nextScheduleID int64
}

// NewInMemory builds an empty ledger with the given token decimals.
func NewInMemory(decimals int32) *InMemory {
	return &InMemory{
		now:            time.Now,
		decimals:       decimals,
		balances:       make(map[string]*big.Int),
		allowances:     make(map[string]map[string]*big.Int),
		requests:       make(map[int64]*PaymentRequest),
		nextRequestID:  1,
		locks:          make(map[int64]*SavingsLock),
		nextLockID:     1,
		schedules:      make(map[int64]*ScheduledPayment),
		nextScheduleID: 1,
	}
}

// SetNow overrides the clock. Tests use it to cross unlock and due times
// without sleeping.
func (m *InMemory) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Mint credits an address out of thin air, the faucet of this ledger.
func (m *InMemory) Mint(address string, units *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credit(address, units)
}

// Requests returns the payment-request facet.
func (m *InMemory) Requests() Requests { return &memRequests{m} }

// Locks returns the savings-lock facet.
func (m *InMemory) Locks() Locks { return &memLocks{m} }

// Schedules returns the scheduled-payment facet.
func (m *InMemory) Schedules() Schedules { return &memSchedules{m} }

func (m *InMemory) txHash() string {
	m.seq++
	return fmt.Sprintf("0xmem%06d", m.seq)
}

func key(address string) string { return strings.ToLower(address) }

func (m *InMemory) balance(address string) *big.Int {
	if b, ok := m.balances[key(address)]; ok {
		return b
	}
	return new(big.Int)
}

func (m *InMemory) credit(address string, units *big.Int) {
	m.balances[key(address)] = new(big.Int).Add(m.balance(address), units)
}

func (m *InMemory) debit(address string, units *big.Int) error {
	b := m.balance(address)
	if b.Cmp(units) < 0 {
		return ErrInsufficientFunds
	}
	m.balances[key(address)] = new(big.Int).Sub(b, units)
	return nil
}

func (m *InMemory) allowance(owner, spender string) *big.Int {
	if spenders, ok := m.allowances[key(owner)]; ok {
		if a, ok := spenders[key(spender)]; ok {
			return a
		}
	}
	return new(big.Int)
}

func (m *InMemory) setAllowance(owner, spender string, units *big.Int) {
	spenders, ok := m.allowances[key(owner)]
	if !ok {
		spenders = make(map[string]*big.Int)
		m.allowances[key(owner)] = spenders
	}
	spenders[key(spender)] = new(big.Int).Set(units)
}

// spend consumes allowance and moves funds, the transferFrom of this ledger.
func (m *InMemory) spend(owner, spender, to string, units *big.Int) error {
	if m.allowance(owner, spender).Cmp(units) < 0 {
		return ErrInsufficientAllowance
	}
	if err := m.debit(owner, units); err != nil {
		return err
	}
	m.setAllowance(owner, spender, new(big.Int).Sub(m.allowance(owner, spender), units))
	m.credit(to, units)
	return nil
}

// Decimals implements Token.
func (m *InMemory) Decimals(context.Context) (int32, error) {
	return m.decimals, nil
}

// BalanceOf implements Token.
func (m *InMemory) BalanceOf(_ context.Context, address string) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.balance(address)), nil
}

// Transfer implements Token.
func (m *InMemory) Transfer(_ context.Context, from, to string, units *big.Int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.debit(from, units); err != nil {
		return "", err
	}
	m.credit(to, units)
	return m.txHash(), nil
}

// Approve implements Token.
func (m *InMemory) Approve(_ context.Context, owner, spender string, units *big.Int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setAllowance(owner, spender, units)
	return m.txHash(), nil
}

// Allowance implements Token.
func (m *InMemory) Allowance(_ context.Context, owner, spender string) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.allowance(owner, spender)), nil
}

type memRequests struct{ m *InMemory }

func (r *memRequests) Address() string { return memRequestsAddress }

func (r *memRequests) Create(_ context.Context, requester, payer string, units *big.Int, note string) (int64, string, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextRequestID
	m.nextRequestID++
	m.requests[id] = &PaymentRequest{
		ID:        id,
		Requester: key(requester),
		Payer:     key(payer),
		Amount:    new(big.Int).Set(units),
		Note:      note,
		CreatedAt: m.now().UTC(),
	}
	return id, m.txHash(), nil
}

func (r *memRequests) Fulfill(_ context.Context, payer string, id int64) (string, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return "", ErrNotFound
	}
	if req.Fulfilled {
		return "", ErrAlreadyFulfilled
	}
	if req.Cancelled {
		return "", ErrCancelled
	}
	if req.Payer != key(payer) {
		return "", fmt.Errorf("request %d is not addressed to %s", id, payer)
	}
	if err := m.spend(payer, memRequestsAddress, req.Requester, req.Amount); err != nil {
		return "", err
	}
	req.Fulfilled = true
	return m.txHash(), nil
}

func (r *memRequests) Cancel(_ context.Context, requester string, id int64) (string, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return "", ErrNotFound
	}
	if req.Fulfilled {
		return "", ErrAlreadyFulfilled
	}
	if req.Cancelled {
		return "", ErrCancelled
	}
	if req.Requester != key(requester) {
		return "", fmt.Errorf("request %d was not created by %s", id, requester)
	}
	req.Cancelled = true
	return m.txHash(), nil
}

func (r *memRequests) Get(_ context.Context, id int64) (PaymentRequest, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return PaymentRequest{}, ErrNotFound
	}
	return *req, nil
}

func (r *memRequests) PendingForPayer(_ context.Context, payer string) ([]PaymentRequest, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PaymentRequest
	for id := int64(1); id < m.nextRequestID; id++ {
		req := m.requests[id]
		if req != nil && req.Payer == key(payer) && !req.Fulfilled && !req.Cancelled {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (r *memRequests) ByRequester(_ context.Context, requester string) ([]PaymentRequest, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PaymentRequest
	for id := m.nextRequestID - 1; id >= 1; id-- {
		req := m.requests[id]
		if req != nil && req.Requester == key(requester) {
			out = append(out, *req)
		}
	}
	return out, nil
}

type memLocks struct{ m *InMemory }

func (l *memLocks) Address() string { return memLocksAddress }

func (l *memLocks) Create(_ context.Context, owner string, units *big.Int, durationSeconds int64, note string) (int64, string, error) {
	m := l.m
	m.mu.Lock()
	defer m.mu.Unlock()
	// Funds escrow into the lock facet at creation, so they must be both
	// present and approved.
	if err := m.spend(owner, memLocksAddress, memLocksAddress, units); err != nil {
		return 0, "", err
	}
	id := m.nextLockID
	m.nextLockID++
	m.locks[id] = &SavingsLock{
		ID:         id,
		Owner:      key(owner),
		Amount:     new(big.Int).Set(units),
		UnlockTime: m.now().Add(time.Duration(durationSeconds) * time.Second).UTC(),
		Note:       note,
	}
	return id, m.txHash(), nil
}

func (l *memLocks) Withdraw(_ context.Context, _ string, id int64) (string, error) {
	m := l.m
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[id]
	if !ok {
		return "", ErrNotFound
	}
	if lock.Withdrawn {
		return "", ErrAlreadyWithdrawn
	}
	if m.now().Before(lock.UnlockTime) {
		return "", ErrLocked
	}
	if err := m.debit(memLocksAddress, lock.Amount); err != nil {
		return "", err
	}
	m.credit(lock.Owner, lock.Amount)
	lock.Withdrawn = true
	return m.txHash(), nil
}

func (l *memLocks) Get(_ context.Context, id int64) (SavingsLock, error) {
	m := l.m
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[id]
	if !ok {
		return SavingsLock{}, ErrNotFound
	}
	return *lock, nil
}

func (l *memLocks) ActiveFor(_ context.Context, owner string) ([]SavingsLock, error) {
	m := l.m
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SavingsLock
	for id := int64(1); id < m.nextLockID; id++ {
		lock := m.locks[id]
		if lock != nil && lock.Owner == key(owner) && !lock.Withdrawn {
			out = append(out, *lock)
		}
	}
	return out, nil
}

func (l *memLocks) CanWithdraw(_ context.Context, id int64) (bool, error) {
	m := l.m
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[id]
	if !ok {
		return false, ErrNotFound
	}
	return !lock.Withdrawn && !m.now().Before(lock.UnlockTime), nil
}

func (l *memLocks) NextID(context.Context) (int64, error) {
	m := l.m
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextLockID, nil
}

type memSchedules struct{ m *InMemory }

func (s *memSchedules) Address() string { return memSchedulesAddress }

func (s *memSchedules) Create(_ context.Context, sender, recipient string, units *big.Int, intervalSeconds, numPayments int64, note string) (int64, string, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextScheduleID
	m.nextScheduleID++
	m.schedules[id] = &ScheduledPayment{
		ID:                id,
		Sender:            key(sender),
		Recipient:         key(recipient),
		Amount:            new(big.Int).Set(units),
		IntervalSeconds:   intervalSeconds,
		NextPaymentTime:   m.now().Add(time.Duration(intervalSeconds) * time.Second).UTC(),
		RemainingPayments: numPayments,
		Active:            true,
		Note:              note,
	}
	return id, m.txHash(), nil
}

func (s *memSchedules) Execute(_ context.Context, _ string, id int64) (string, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	sched, ok := m.schedules[id]
	if !ok {
		return "", ErrNotFound
	}
	if !sched.Active {
		return "", ErrInactive
	}
	if m.now().Before(sched.NextPaymentTime) {
		return "", ErrNotDue
	}
	if err := m.spend(sched.Sender, memSchedulesAddress, sched.Recipient, sched.Amount); err != nil {
		return "", err
	}
	sched.NextPaymentTime = sched.NextPaymentTime.Add(time.Duration(sched.IntervalSeconds) * time.Second)
	if sched.RemainingPayments > 0 {
		sched.RemainingPayments--
		if sched.RemainingPayments == 0 {
			sched.Active = false
		}
	}
	return m.txHash(), nil
}

func (s *memSchedules) Cancel(_ context.Context, sender string, id int64) (string, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	sched, ok := m.schedules[id]
	if !ok {
		return "", ErrNotFound
	}
	if !sched.Active {
		return "", ErrInactive
	}
	if sched.Sender != key(sender) {
		return "", fmt.Errorf("schedule %d was not created by %s", id, sender)
	}
	sched.Active = false
	return m.txHash(), nil
}

func (s *memSchedules) Get(_ context.Context, id int64) (ScheduledPayment, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	sched, ok := m.schedules[id]
	if !ok {
		return ScheduledPayment{}, ErrNotFound
	}
	return *sched, nil
}

func (s *memSchedules) ActiveBySender(_ context.Context, sender string) ([]ScheduledPayment, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ScheduledPayment
	for id := int64(1); id < m.nextScheduleID; id++ {
		sched := m.schedules[id]
		if sched != nil && sched.Sender == key(sender) && sched.Active {
			out = append(out, *sched)
		}
	}
	return out, nil
}

func (s *memSchedules) IsPaymentDue(_ context.Context, id int64) (bool, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	sched, ok := m.schedules[id]
	if !ok {
		return false, ErrNotFound
	}
	return sched.Active && !m.now().Before(sched.NextPaymentTime), nil
}

func (s *memSchedules) NextID(context.Context) (int64, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextScheduleID, nil
}
