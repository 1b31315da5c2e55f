// Package keeper is the background executor for future-dated obligations:
// due scheduled payments and expired savings locks. It holds no execution
// log of its own; every cycle re-derives due/withdrawable predicates from
// ledger state, so re-running against an executed obligation is a no-op.
package keeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/xaviersharwin10/mnee-chat/internal/ledger"
	"github.com/xaviersharwin10/mnee-chat/internal/notification"
	"github.com/xaviersharwin10/mnee-chat/internal/payments"
	"github.com/xaviersharwin10/mnee-chat/internal/wallet"
)

// DefaultInterval is the cycle period when none is configured.
const DefaultInterval = 60 * time.Second

// Config carries the keeper's collaborators. Locks and Schedules may be nil
// when the matching feature is disabled; the keeper then skips that sweep.
type Config struct {
	Schedules ledger.Schedules
	Locks     ledger.Locks
	Payments  *payments.Service
	Resolver  *wallet.Resolver
	Notifier  notification.Notifier
	// Sponsor is the address submitting keeper-driven executions.
	Sponsor  string
	Interval time.Duration
	Logger   *slog.Logger
}

// Keeper runs the obligation cycle on a fixed interval. A cycle never
// overlaps itself: the sponsor identity funds all executions and must not
// race its own nonce.
type Keeper struct {
	schedules ledger.Schedules
	locks     ledger.Locks
	payments  *payments.Service
	resolver  *wallet.Resolver
	notifier  notification.Notifier
	sponsor   string
	interval  time.Duration
	logger    *slog.Logger
	busy      atomic.Bool
}

// New builds a keeper.
func New(cfg Config) *Keeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Keeper{
		schedules: cfg.Schedules,
		locks:     cfg.Locks,
		payments:  cfg.Payments,
		resolver:  cfg.Resolver,
		notifier:  cfg.Notifier,
		sponsor:   cfg.Sponsor,
		interval:  cfg.Interval,
		logger:    cfg.Logger.With("component", "keeper"),
	}
}

// Start runs cycles until the context is cancelled. Blocking; callers run it
// in its own goroutine.
func (k *Keeper) Start(ctx context.Context) {
	k.logger.Info("keeper started", "interval", k.interval.String())
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			k.logger.Info("keeper stopped")
			return
		case <-ticker.C:
			if !k.RunCycle(ctx) {
				k.logger.Debug("cycle still running, tick skipped")
			}
		}
	}
}

// Busy reports whether a cycle is currently in flight.
func (k *Keeper) Busy() bool {
	return k.busy.Load()
}

// RunCycle executes one obligation sweep. Returns false when a cycle is
// already in flight; the overlapping run is skipped, never queued.
func (k *Keeper) RunCycle(ctx context.Context) bool {
	if !k.busy.CompareAndSwap(false, true) {
		return false
	}
	defer k.busy.Store(false)

	start := time.Now()
	executed := k.sweepSchedules(ctx)
	withdrawn := k.sweepLocks(ctx)
	if executed > 0 || withdrawn > 0 {
		k.logger.Info("cycle complete", "executed", executed, "withdrawn", withdrawn, "elapsed", time.Since(start).String())
	}
	return true
}

// sweepSchedules enumerates every allocated schedule id and executes the due
// ones, one at a time. A per-id failure is logged and tolerated.
func (k *Keeper) sweepSchedules(ctx context.Context) int {
	if k.schedules == nil {
		return 0
	}
	nextID, err := k.schedules.NextID(ctx)
	if err != nil {
		k.logger.Warn("schedule sweep aborted", "error", err)
		return 0
	}

	executed := 0
	for id := int64(1); id < nextID; id++ {
		due, err := k.schedules.IsPaymentDue(ctx, id)
		if err != nil {
			k.logger.Warn("due check failed", "schedule", id, "error", err)
			continue
		}
		if !due {
			continue
		}
		txHash, err := k.schedules.Execute(ctx, k.sponsor, id)
		if err != nil {
			k.logger.Warn("execution failed", "schedule", id, "error", err)
			continue
		}
		executed++
		k.logger.Info("schedule executed", "schedule", id, "tx", txHash)
		k.notifyScheduleParties(ctx, id)
	}
	return executed
}

// sweepLocks auto-withdraws expired savings locks back to their owners.
func (k *Keeper) sweepLocks(ctx context.Context) int {
	if k.locks == nil {
		return 0
	}
	nextID, err := k.locks.NextID(ctx)
	if err != nil {
		k.logger.Warn("lock sweep aborted", "error", err)
		return 0
	}

	withdrawn := 0
	for id := int64(1); id < nextID; id++ {
		ok, err := k.locks.CanWithdraw(ctx, id)
		if err != nil {
			k.logger.Warn("withdrawable check failed", "lock", id, "error", err)
			continue
		}
		if !ok {
			continue
		}
		txHash, err := k.locks.Withdraw(ctx, k.sponsor, id)
		if err != nil {
			k.logger.Warn("withdrawal failed", "lock", id, "error", err)
			continue
		}
		withdrawn++
		k.logger.Info("lock withdrawn", "lock", id, "tx", txHash)
		k.notifyLockOwner(ctx, id)
	}
	return withdrawn
}

func (k *Keeper) notifyScheduleParties(ctx context.Context, id int64) {
	sched, err := k.schedules.Get(ctx, id)
	if err != nil {
		return
	}
	amount, err := k.payments.FromUnits(ctx, sched.Amount)
	if err != nil {
		return
	}

	// Addresses resolve only for identities seen in-process; anything else
	// is silently skipped.
	if sender, ok := k.resolver.ByAddress(sched.Sender); ok {
		k.notify(ctx, sender, fmt.Sprintf(
			"⏰ *Auto-Pay Sent*\n\nSchedule #%d sent *%s MNEE* automatically.", id, amount.String()))
	}
	if recipient, ok := k.resolver.ByAddress(sched.Recipient); ok {
		k.notify(ctx, recipient, fmt.Sprintf(
			"💰 *You received %s MNEE!*\n\nFrom auto-pay #%d. Type *balance* to check your funds.", amount.String(), id))
	}
}

func (k *Keeper) notifyLockOwner(ctx context.Context, id int64) {
	lock, err := k.locks.Get(ctx, id)
	if err != nil {
		return
	}
	owner, ok := k.resolver.ByAddress(lock.Owner)
	if !ok {
		return
	}
	amount, err := k.payments.FromUnits(ctx, lock.Amount)
	if err != nil {
		return
	}
	k.notify(ctx, owner, fmt.Sprintf(
		"🔓 *Savings Unlocked!*\n\nLock #%d expired and *%s MNEE* was returned to your wallet.", id, amount.String()))
}

func (k *Keeper) notify(ctx context.Context, identity, text string) {
	if _, err := k.notifier.Send(ctx, identity, text); err != nil {
		k.logger.Warn("notification failed", "identity", identity, "error", err)
	}
}
