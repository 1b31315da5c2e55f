package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"
)

const (
	alice = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bob   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func newFundedLedger(t *testing.T, units int64) *InMemory {
	t.Helper()
	m := NewInMemory(5)
	m.Mint(alice, big.NewInt(units))
	return m
}

func TestTransferMovesFunds(t *testing.T) {
	m := newFundedLedger(t, 1000)
	ctx := context.Background()

	if _, err := m.Transfer(ctx, alice, bob, big.NewInt(300)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	a, _ := m.BalanceOf(ctx, alice)
	b, _ := m.BalanceOf(ctx, bob)
	if a.Int64() != 700 || b.Int64() != 300 {
		t.Fatalf("balances = %v / %v", a, b)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	m := newFundedLedger(t, 100)
	_, err := m.Transfer(context.Background(), alice, bob, big.NewInt(101))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
}

func TestRequestLifecycle(t *testing.T) {
	m := NewInMemory(5)
	m.Mint(bob, big.NewInt(500))
	requests := m.Requests()
	ctx := context.Background()

	id, txHash, err := requests.Create(ctx, alice, bob, big.NewInt(200), "lunch")
	if err != nil || id != 1 || txHash == "" {
		t.Fatalf("create: id=%d tx=%q err=%v", id, txHash, err)
	}

	pending, err := requests.PendingForPayer(ctx, bob)
	if err != nil || len(pending) != 1 || pending[0].Note != "lunch" {
		t.Fatalf("pending = %+v, %v", pending, err)
	}

	// Fulfill needs an allowance toward the request facet first.
	if _, err := requests.Fulfill(ctx, bob, id); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("fulfill without approval: %v", err)
	}
	if _, err := m.Approve(ctx, bob, requests.Address(), big.NewInt(200)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := requests.Fulfill(ctx, bob, id); err != nil {
		t.Fatalf("fulfill: %v", err)
	}

	a, _ := m.BalanceOf(ctx, alice)
	if a.Int64() != 200 {
		t.Fatalf("requester balance = %v", a)
	}
	if _, err := requests.Fulfill(ctx, bob, id); !errors.Is(err, ErrAlreadyFulfilled) {
		t.Fatalf("double fulfill: %v", err)
	}
	if pending, _ := requests.PendingForPayer(ctx, bob); len(pending) != 0 {
		t.Fatalf("fulfilled request still pending: %+v", pending)
	}
}

func TestRequestCancel(t *testing.T) {
	m := NewInMemory(5)
	requests := m.Requests()
	ctx := context.Background()

	id, _, err := requests.Create(ctx, alice, bob, big.NewInt(50), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := requests.Cancel(ctx, bob, id); err == nil {
		t.Fatal("payer should not be able to cancel")
	}
	if _, err := requests.Cancel(ctx, alice, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := requests.Fulfill(ctx, bob, id); !errors.Is(err, ErrCancelled) {
		t.Fatalf("fulfill cancelled: %v", err)
	}
	reqs, err := requests.ByRequester(ctx, alice)
	if err != nil || len(reqs) != 1 || !reqs[0].Cancelled {
		t.Fatalf("by requester = %+v, %v", reqs, err)
	}
}

func TestLockEscrowAndWithdraw(t *testing.T) {
	m := newFundedLedger(t, 1000)
	locks := m.Locks()
	ctx := context.Background()

	now := time.Now()
	m.SetNow(func() time.Time { return now })

	// Creation escrows, so it needs both allowance and balance.
	if _, _, err := locks.Create(ctx, alice, big.NewInt(400), 3600, "rainy day"); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("create without approval: %v", err)
	}
	if _, err := m.Approve(ctx, alice, locks.Address(), big.NewInt(400)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	id, _, err := locks.Create(ctx, alice, big.NewInt(400), 3600, "rainy day")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if bal, _ := m.BalanceOf(ctx, alice); bal.Int64() != 600 {
		t.Fatalf("balance after escrow = %v", bal)
	}

	if ok, _ := locks.CanWithdraw(ctx, id); ok {
		t.Fatal("lock should not be withdrawable yet")
	}
	if _, err := locks.Withdraw(ctx, alice, id); !errors.Is(err, ErrLocked) {
		t.Fatalf("early withdraw: %v", err)
	}

	m.SetNow(func() time.Time { return now.Add(2 * time.Hour) })
	if ok, _ := locks.CanWithdraw(ctx, id); !ok {
		t.Fatal("lock should be withdrawable after expiry")
	}
	if _, err := locks.Withdraw(ctx, alice, id); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if bal, _ := m.BalanceOf(ctx, alice); bal.Int64() != 1000 {
		t.Fatalf("balance after withdraw = %v", bal)
	}
	if _, err := locks.Withdraw(ctx, alice, id); !errors.Is(err, ErrAlreadyWithdrawn) {
		t.Fatalf("double withdraw: %v", err)
	}
}

func TestScheduleExecution(t *testing.T) {
	m := newFundedLedger(t, 1000)
	schedules := m.Schedules()
	ctx := context.Background()

	now := time.Now()
	m.SetNow(func() time.Time { return now })

	id, _, err := schedules.Create(ctx, alice, bob, big.NewInt(100), 60, 2, "allowance")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.Approve(ctx, alice, schedules.Address(), big.NewInt(200)); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if due, _ := schedules.IsPaymentDue(ctx, id); due {
		t.Fatal("payment should not be due at creation")
	}
	if _, err := schedules.Execute(ctx, alice, id); !errors.Is(err, ErrNotDue) {
		t.Fatalf("early execute: %v", err)
	}

	m.SetNow(func() time.Time { return now.Add(61 * time.Second) })
	if _, err := schedules.Execute(ctx, alice, id); err != nil {
		t.Fatalf("execute: %v", err)
	}
	s, _ := schedules.Get(ctx, id)
	if s.RemainingPayments != 1 || !s.Active {
		t.Fatalf("after first execution: %+v", s)
	}

	m.SetNow(func() time.Time { return now.Add(121 * time.Second) })
	if _, err := schedules.Execute(ctx, alice, id); err != nil {
		t.Fatalf("execute: %v", err)
	}
	s, _ = schedules.Get(ctx, id)
	if s.Active {
		t.Fatal("schedule should deactivate after final payment")
	}
	if _, err := schedules.Execute(ctx, alice, id); !errors.Is(err, ErrInactive) {
		t.Fatalf("execute inactive: %v", err)
	}
	if b, _ := m.BalanceOf(ctx, bob); b.Int64() != 200 {
		t.Fatalf("recipient balance = %v", b)
	}
}

func TestScheduleUnlimited(t *testing.T) {
	m := newFundedLedger(t, 1000)
	schedules := m.Schedules()
	ctx := context.Background()

	now := time.Now()
	m.SetNow(func() time.Time { return now })

	id, _, err := schedules.Create(ctx, alice, bob, big.NewInt(10), 60, 0, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.Approve(ctx, alice, schedules.Address(), big.NewInt(1000)); err != nil {
		t.Fatalf("approve: %v", err)
	}

	for i := 1; i <= 5; i++ {
		m.SetNow(func() time.Time { return now.Add(time.Duration(i*60+1) * time.Second) })
		if _, err := schedules.Execute(ctx, alice, id); err != nil {
			t.Fatalf("execute %d: %v", i, err)
		}
	}
	s, _ := schedules.Get(ctx, id)
	if !s.Active || s.RemainingPayments != 0 {
		t.Fatalf("unlimited schedule should stay active: %+v", s)
	}
}

func TestScheduleCancel(t *testing.T) {
	m := newFundedLedger(t, 100)
	schedules := m.Schedules()
	ctx := context.Background()

	id, _, err := schedules.Create(ctx, alice, bob, big.NewInt(10), 60, 0, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := schedules.Cancel(ctx, bob, id); err == nil {
		t.Fatal("recipient should not be able to cancel")
	}
	if _, err := schedules.Cancel(ctx, alice, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if active, _ := schedules.ActiveBySender(ctx, alice); len(active) != 0 {
		t.Fatalf("cancelled schedule still active: %+v", active)
	}
}

func TestIDsStartAtOne(t *testing.T) {
	m := NewInMemory(5)
	ctx := context.Background()
	if next, _ := m.Locks().NextID(ctx); next != 1 {
		t.Fatalf("nextLockId = %d", next)
	}
	if next, _ := m.Schedules().NextID(ctx); next != 1 {
		t.Fatalf("nextScheduleId = %d", next)
	}
	if _, err := m.Requests().Get(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get missing request: %v", err)
	}
}
