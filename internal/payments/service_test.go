package payments

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/xaviersharwin10/mnee-chat/internal/custody"
	"github.com/xaviersharwin10/mnee-chat/internal/ledger"
	"github.com/xaviersharwin10/mnee-chat/internal/logging"
)

const (
	sender    = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	recipient = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	sponsor   = "0xcccccccccccccccccccccccccccccccccccccccc"
)

// recordingToken counts submissions so tests can assert nothing was sent.
type recordingToken struct {
	ledger.Token
	transfers int
	approvals int
}

func (t *recordingToken) Transfer(ctx context.Context, from, to string, units *big.Int) (string, error) {
	t.transfers++
	return t.Token.Transfer(ctx, from, to, units)
}

func (t *recordingToken) Approve(ctx context.Context, owner, spender string, units *big.Int) (string, error) {
	t.approvals++
	return t.Token.Approve(ctx, owner, spender, units)
}

type stubBackend struct {
	faucetErr error
}

func (b *stubBackend) Kind() custody.BackendKind { return custody.DeterministicLocal }

func (b *stubBackend) GetOrCreate(context.Context, string) (custody.Account, error) {
	return custody.Account{}, custody.ErrNotFound
}

func (b *stubBackend) SubmitTransaction(context.Context, string, string, string, string) (string, error) {
	return "0xtx", nil
}

func (b *stubBackend) RequestFaucet(context.Context, string, string, string) (string, error) {
	if b.faucetErr != nil {
		return "", b.faucetErr
	}
	return "0xfaucet", nil
}

func newTestService(mem *ledger.InMemory, token ledger.Token) *Service {
	return NewService(Config{
		Token:     token,
		Requests:  mem.Requests(),
		Locks:     mem.Locks(),
		Schedules: mem.Schedules(),
		Backend:   &stubBackend{faucetErr: custody.ErrUnsupported},
		Network:   "local",
		Sponsor:   sponsor,
		Logger:    logging.Discard(),
	})
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

func TestTransfer(t *testing.T) {
	mem := ledger.NewInMemory(5)
	mem.Mint(sender, big.NewInt(1_000_000)) // 10.00000
	svc := newTestService(mem, mem)
	ctx := context.Background()

	txHash, err := svc.Transfer(ctx, sender, recipient, mustDecimal(t, "2.5"))
	if err != nil || txHash == "" {
		t.Fatalf("transfer: tx=%q err=%v", txHash, err)
	}

	balance, err := svc.Balance(ctx, recipient)
	if err != nil || !balance.Equal(mustDecimal(t, "2.5")) {
		t.Fatalf("recipient balance = %s, %v", balance, err)
	}
}

func TestTransferFailsFastOnBalance(t *testing.T) {
	mem := ledger.NewInMemory(5)
	mem.Mint(sender, big.NewInt(100))
	token := &recordingToken{Token: mem}
	svc := newTestService(mem, token)

	_, err := svc.Transfer(context.Background(), sender, recipient, mustDecimal(t, "50"))
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if token.transfers != 0 {
		t.Fatal("transfer submitted despite insufficient balance")
	}
}

func TestTransferRejectsBadAmounts(t *testing.T) {
	mem := ledger.NewInMemory(5)
	mem.Mint(sender, big.NewInt(1_000_000))
	svc := newTestService(mem, mem)
	ctx := context.Background()

	for _, amount := range []string{"0", "-1", "0.000001"} { // 6 places > 5 decimals
		_, err := svc.Transfer(ctx, sender, recipient, mustDecimal(t, amount))
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %s: err = %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestFulfillRequestApprovesAutomatically(t *testing.T) {
	mem := ledger.NewInMemory(5)
	mem.Mint(recipient, big.NewInt(1_000_000))
	token := &recordingToken{Token: mem}
	svc := newTestService(mem, token)
	ctx := context.Background()

	created, err := svc.CreateRequest(ctx, sender, recipient, mustDecimal(t, "3"), "lunch")
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req, txHash, err := svc.FulfillRequest(ctx, recipient, created.ID)
	if err != nil || txHash == "" {
		t.Fatalf("fulfill: tx=%q err=%v", txHash, err)
	}
	if req.Note != "lunch" {
		t.Fatalf("request = %+v", req)
	}
	if token.approvals != 1 {
		t.Fatalf("approvals = %d, want 1", token.approvals)
	}

	balance, _ := svc.Balance(ctx, sender)
	if !balance.Equal(mustDecimal(t, "3")) {
		t.Fatalf("requester balance = %s", balance)
	}

	// Terminal state surfaces as a sentinel, not a submission.
	if _, _, err := svc.FulfillRequest(ctx, recipient, created.ID); !errors.Is(err, ledger.ErrAlreadyFulfilled) {
		t.Fatalf("double fulfill: %v", err)
	}
}

func TestCreateLockValidatesDurationFirst(t *testing.T) {
	mem := ledger.NewInMemory(5)
	mem.Mint(sender, big.NewInt(1_000_000))
	token := &recordingToken{Token: mem}
	svc := newTestService(mem, token)

	_, _, err := svc.CreateLock(context.Background(), sender, mustDecimal(t, "1"), "fortnight", "")
	if !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("err = %v, want ErrInvalidDuration", err)
	}
	if token.approvals != 0 || token.transfers != 0 {
		t.Fatal("network traffic before duration validation")
	}
}

func TestCreateLockAndWithdraw(t *testing.T) {
	mem := ledger.NewInMemory(5)
	mem.Mint(sender, big.NewInt(1_000_000))
	svc := newTestService(mem, mem)
	ctx := context.Background()

	created, ivl, err := svc.CreateLock(ctx, sender, mustDecimal(t, "4"), "1 hour", "vacation")
	if err != nil {
		t.Fatalf("create lock: %v", err)
	}
	if ivl.Seconds != 3600 {
		t.Fatalf("interval = %+v", ivl)
	}
	balance, _ := svc.Balance(ctx, sender)
	if !balance.Equal(mustDecimal(t, "6")) {
		t.Fatalf("balance after escrow = %s", balance)
	}

	if _, _, err := svc.WithdrawLock(ctx, sender, created.ID); !errors.Is(err, ledger.ErrLocked) {
		t.Fatalf("early withdraw: %v", err)
	}

	locks, err := svc.ListLocks(ctx, sender)
	if err != nil || len(locks) != 1 || locks[0].Note != "vacation" {
		t.Fatalf("list locks = %+v, %v", locks, err)
	}
}

func TestCreateScheduleGrantsUnlimitedAllowance(t *testing.T) {
	mem := ledger.NewInMemory(5)
	mem.Mint(sender, big.NewInt(10_000_000))
	svc := newTestService(mem, mem)
	ctx := context.Background()

	created, ivl, err := svc.CreateSchedule(ctx, sender, recipient, mustDecimal(t, "1"), "daily", 0, "rent")
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	if ivl.Seconds != 86400 {
		t.Fatalf("interval = %+v", ivl)
	}

	allowance, err := mem.Allowance(ctx, sender, mem.Schedules().Address())
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	// Many future executions must fit under the single grant.
	if allowance.Cmp(big.NewInt(1_000_000_000)) < 0 {
		t.Fatalf("allowance = %v, want unlimited-scale", allowance)
	}

	schedules, err := svc.ListSchedules(ctx, sender)
	if err != nil || len(schedules) != 1 || schedules[0].ID != created.ID {
		t.Fatalf("list schedules = %+v, %v", schedules, err)
	}
}

func TestDisabledFeatures(t *testing.T) {
	mem := ledger.NewInMemory(5)
	svc := NewService(Config{
		Token:   mem,
		Backend: &stubBackend{},
		Logger:  logging.Discard(),
	})
	ctx := context.Background()

	if _, err := svc.CreateRequest(ctx, sender, recipient, mustDecimal(t, "1"), ""); !errors.Is(err, ledger.ErrNotConfigured) {
		t.Fatalf("requests: %v", err)
	}
	if _, _, err := svc.CreateLock(ctx, sender, mustDecimal(t, "1"), "daily", ""); !errors.Is(err, ledger.ErrNotConfigured) {
		t.Fatalf("locks: %v", err)
	}
	if _, err := svc.ListSchedules(ctx, sender); !errors.Is(err, ledger.ErrNotConfigured) {
		t.Fatalf("schedules: %v", err)
	}
}

func TestFaucetPrefersBackend(t *testing.T) {
	mem := ledger.NewInMemory(5)
	svc := NewService(Config{
		Token:   mem,
		Backend: &stubBackend{},
		Logger:  logging.Discard(),
	})

	amount, txHash, err := svc.Faucet(context.Background(), recipient)
	if err != nil || txHash != "0xfaucet" {
		t.Fatalf("faucet: tx=%q err=%v", txHash, err)
	}
	if !amount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("amount = %s", amount)
	}
}

func TestFaucetFallsBackToSponsor(t *testing.T) {
	mem := ledger.NewInMemory(5)
	mem.Mint(sponsor, big.NewInt(100_000_000))
	svc := newTestService(mem, mem)
	ctx := context.Background()

	amount, txHash, err := svc.Faucet(ctx, recipient)
	if err != nil || txHash == "" {
		t.Fatalf("faucet: tx=%q err=%v", txHash, err)
	}
	balance, _ := svc.Balance(ctx, recipient)
	if !balance.Equal(amount) {
		t.Fatalf("recipient balance = %s, want %s", balance, amount)
	}
}

func TestFaucetUnavailableWithoutSponsor(t *testing.T) {
	mem := ledger.NewInMemory(5)
	svc := NewService(Config{
		Token:   mem,
		Backend: &stubBackend{faucetErr: custody.ErrUnsupported},
		Logger:  logging.Discard(),
	})

	if _, _, err := svc.Faucet(context.Background(), recipient); !errors.Is(err, ErrFaucetUnavailable) {
		t.Fatalf("err = %v, want ErrFaucetUnavailable", err)
	}
}
