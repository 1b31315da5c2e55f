// Package bot is the message-handling boundary: it welcomes new identities,
// enforces per-identity rate limits, parses inbound text and dispatches to
// the payment orchestrator. Every inbound message produces exactly one
// reply; errors are mapped to short human-readable texts here and never
// escape.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xaviersharwin10/mnee-chat/internal/duration"
	"github.com/xaviersharwin10/mnee-chat/internal/intent"
	"github.com/xaviersharwin10/mnee-chat/internal/ledger"
	"github.com/xaviersharwin10/mnee-chat/internal/notification"
	"github.com/xaviersharwin10/mnee-chat/internal/payments"
	"github.com/xaviersharwin10/mnee-chat/internal/ratelimit"
	"github.com/xaviersharwin10/mnee-chat/internal/wallet"
)

// Inbound is one chat message as delivered by the webhook.
type Inbound struct {
	Identity    string
	Text        string
	ProfileName string
	MessageID   string
}

// Config carries the router's collaborators.
type Config struct {
	Resolver *wallet.Resolver
	Parser   *intent.Parser
	Payments *payments.Service
	Notifier notification.Notifier
	Limiter  ratelimit.Store
	// Explorer is the block-explorer base URL for receipt links; empty
	// disables links.
	Explorer string
	Logger   *slog.Logger
}

// Router dispatches inbound messages. Safe for concurrent use; each message
// is an independent unit of work.
type Router struct {
	resolver *wallet.Resolver
	parser   *intent.Parser
	payments *payments.Service
	notifier notification.Notifier
	limiter  ratelimit.Store
	explorer string
	logger   *slog.Logger
	now      func() time.Time
}

// NewRouter builds the router.
func NewRouter(cfg Config) *Router {
	return &Router{
		resolver: cfg.Resolver,
		parser:   cfg.Parser,
		payments: cfg.Payments,
		notifier: cfg.Notifier,
		limiter:  cfg.Limiter,
		explorer: cfg.Explorer,
		logger:   cfg.Logger.With("component", "bot"),
		now:      time.Now,
	}
}

// Handle processes one inbound message end to end. It never returns an
// error: every failure path becomes a reply.
func (r *Router) Handle(ctx context.Context, in Inbound) {
	identity := wallet.Normalize(in.Identity)
	if identity == "" {
		r.logger.Warn("inbound message without usable identity", "message_id", in.MessageID)
		return
	}
	logger := r.logger.With("identity", identity, "message_id", in.MessageID)

	// A first contact provisions a wallet and gets the onboarding text.
	// The first message itself is never executed as a command.
	if !r.resolver.Known(identity) {
		handle, err := r.resolver.Resolve(ctx, identity)
		if err != nil {
			logger.Error("provisioning failed", "error", err)
			r.reply(ctx, identity, genericErrorMessage)
			return
		}
		logger.Info("new identity welcomed", "address", handle.Address)
		r.reply(ctx, identity, welcomeMessage(in.ProfileName, handle.Address))
		return
	}

	allowed, err := r.limiter.Allow(ctx, identity)
	if err != nil {
		logger.Warn("rate limiter unavailable", "error", err)
	}
	if !allowed {
		r.reply(ctx, identity, rateLimitMessage)
		return
	}

	parsed, ok := r.parser.Parse(ctx, in.Text)
	if !ok {
		r.reply(ctx, identity, helpMessage)
		return
	}
	logger.Info("dispatching", "kind", parsed.Kind)

	text, err := r.dispatch(ctx, identity, in.ProfileName, parsed)
	if err != nil {
		logger.Error("dispatch failed", "kind", parsed.Kind, "error", err)
		r.reply(ctx, identity, userMessage(err))
		return
	}
	r.reply(ctx, identity, text)
}

// reply sends best-effort: a notification failure is logged and swallowed.
func (r *Router) reply(ctx context.Context, identity, text string) {
	if _, err := r.notifier.Send(ctx, identity, text); err != nil {
		r.logger.Warn("reply failed", "identity", identity, "error", err)
	}
}

func (r *Router) dispatch(ctx context.Context, identity, profileName string, in intent.Intent) (string, error) {
	switch in.Kind {
	case intent.KindHelp:
		return helpMessage, nil
	case intent.KindBalance:
		return r.handleBalance(ctx, identity)
	case intent.KindAddress:
		return r.handleAddress(ctx, identity)
	case intent.KindDepositInfo:
		return r.handleDeposit(ctx, identity)
	case intent.KindSend:
		return r.handleSend(ctx, identity, profileName, in)
	case intent.KindCreateRequest:
		return r.handleCreateRequest(ctx, identity, in)
	case intent.KindPayRequest:
		return r.handlePayRequest(ctx, identity, in.TargetID)
	case intent.KindCancelRequest:
		return r.handleCancelRequest(ctx, identity, in.TargetID)
	case intent.KindMyRequests:
		return r.handleMyRequests(ctx, identity)
	case intent.KindCreateLock:
		return r.handleCreateLock(ctx, identity, in)
	case intent.KindUnlock:
		return r.handleUnlock(ctx, identity, in.TargetID)
	case intent.KindMyLocks:
		return r.handleMyLocks(ctx, identity)
	case intent.KindCreateSchedule:
		return r.handleCreateSchedule(ctx, identity, in)
	case intent.KindCancelSchedule:
		return r.handleCancelSchedule(ctx, identity, in.TargetID)
	case intent.KindMySchedules:
		return r.handleMySchedules(ctx, identity)
	default:
		return helpMessage, nil
	}
}

func (r *Router) handleBalance(ctx context.Context, identity string) (string, error) {
	handle, err := r.resolver.Resolve(ctx, identity)
	if err != nil {
		return "", err
	}
	balance, err := r.payments.Balance(ctx, handle.Address)
	if err != nil {
		return "", err
	}
	return balanceMessage(balance, handle.Address), nil
}

func (r *Router) handleAddress(ctx context.Context, identity string) (string, error) {
	handle, err := r.resolver.Resolve(ctx, identity)
	if err != nil {
		return "", err
	}
	return addressMessage(handle.Address, r.explorer), nil
}

func (r *Router) handleDeposit(ctx context.Context, identity string) (string, error) {
	handle, err := r.resolver.Resolve(ctx, identity)
	if err != nil {
		return "", err
	}
	return depositMessage(handle.Address), nil
}

func (r *Router) handleSend(ctx context.Context, identity, profileName string, in intent.Intent) (string, error) {
	sender, err := r.resolver.Resolve(ctx, identity)
	if err != nil {
		return "", err
	}
	recipient, err := r.resolver.Resolve(ctx, in.Recipient)
	if err != nil {
		return "", err
	}

	txHash, err := r.payments.Transfer(ctx, sender.Address, recipient.Address, in.Amount)
	if err != nil {
		return "", err
	}

	from := profileName
	if from == "" {
		from = identity
	}
	r.notify(ctx, recipient.Identity, fmt.Sprintf(
		"💰 *You received %s MNEE!*\n\nFrom: %s\n\nType *balance* to check your funds.",
		in.Amount.String(), from))

	balance, err := r.payments.Balance(ctx, sender.Address)
	if err != nil {
		return fmt.Sprintf("✅ *Payment Sent!*\n\n💸 *%s MNEE* → +%s%s",
			in.Amount.String(), recipient.Identity, txLink(r.explorer, txHash)), nil
	}
	return fmt.Sprintf("✅ *Payment Sent!*\n\n💸 *%s MNEE* → +%s\n\n💰 New balance: *%s MNEE*%s",
		in.Amount.String(), recipient.Identity, balance.String(), txLink(r.explorer, txHash)), nil
}

func (r *Router) handleCreateRequest(ctx context.Context, identity string, in intent.Intent) (string, error) {
	requester, err := r.resolver.Resolve(ctx, identity)
	if err != nil {
		return "", err
	}
	payer, err := r.resolver.Resolve(ctx, in.Payer)
	if err != nil {
		return "", err
	}

	created, err := r.payments.CreateRequest(ctx, requester.Address, payer.Address, in.Amount, "")
	if err != nil {
		return "", err
	}

	payText := "Type *my requests* to pay."
	if created.ID != ledger.PendingID {
		payText = fmt.Sprintf("Reply: *pay request %d*", created.ID)
	}
	r.notify(ctx, payer.Identity, fmt.Sprintf(
		"📩 *Payment Request*\n\n+%s is requesting *%s MNEE*\n\n%s",
		requester.Identity, in.Amount.String(), payText))

	return fmt.Sprintf("✅ *Request Sent!*\n\n📩 Requested *%s MNEE* from +%s\n\nThey'll be notified to pay.",
		in.Amount.String(), payer.Identity), nil
}

func (r *Router) handlePayRequest(ctx context.Context, identity string, id int64) (string, error) {
	payer, err := r.resolver.Resolve(ctx, identity)
	if err != nil {
		return "", err
	}
	req, txHash, err := r.payments.FulfillRequest(ctx, payer.Address, id)
	if err != nil {
		return "", err
	}

	amount, convErr := r.payments.FromUnits(ctx, req.Amount)
	if convErr != nil {
		return fmt.Sprintf("✅ *Request Paid!*\n\nRequest #%d settled.%s", id, txLink(r.explorer, txHash)), nil
	}
	if requester, ok := r.resolver.ByAddress(req.Requester); ok {
		r.notify(ctx, requester, fmt.Sprintf(
			"💰 *Request Paid!*\n\n+%s paid your request #%d for *%s MNEE*.",
			payer.Identity, id, amount.String()))
	}
	return fmt.Sprintf("✅ *Request Paid!*\n\nYou paid *%s MNEE* for request #%d%s",
		amount.String(), id, txLink(r.explorer, txHash)), nil
}

func (r *Router) handleCancelRequest(ctx context.Context, identity string, id int64) (string, error) {
	requester, err := r.resolver.Resolve(ctx, identity)
	if err != nil {
		return "", err
	}
	if _, err := r.payments.CancelRequest(ctx, requester.Address, id); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Request #%d cancelled.", id), nil
}

func (r *Router) handleMyRequests(ctx context.Context, identity string) (string, error) {
	handle, err := r.resolver.Resolve(ctx, identity)
	if err != nil {
		return "", err
	}
	lists, err := r.payments.ListRequests(ctx, handle.Address)
	if err != nil {
		return "", err
	}
	if len(lists.Incoming) == 0 && len(lists.Outgoing) == 0 {
		return "📭 *No Requests Found*\n\nYou don't have any pending or sent requests.", nil
	}

	var b strings.Builder
	if len(lists.Incoming) > 0 {
		b.WriteString("📉 *To Pay (Incoming)*\n")
		for _, req := range lists.Incoming {
			amount, _ := r.payments.FromUnits(ctx, req.Amount)
			fmt.Fprintf(&b, "━━━━━━━━━━\n#%d: *%s MNEE*\nFrom: %s\n→ Reply: *pay request %d*\n",
				req.ID, amount.String(), shortAddress(req.Requester), req.ID)
		}
		b.WriteString("\n")
	}
	if len(lists.Outgoing) > 0 {
		b.WriteString("📈 *Sent Requests*\n")
		shown := lists.Outgoing
		if len(shown) > 5 {
			shown = shown[:5]
		}
		for _, req := range shown {
			amount, _ := r.payments.FromUnits(ctx, req.Amount)
			fmt.Fprintf(&b, "━━━━━━━━━━\n#%d: *%s MNEE*\nTo: %s\nStatus: %s\n",
				req.ID, amount.String(), shortAddress(req.Payer), requestStatus(req))
		}
		if len(lists.Outgoing) > 5 {
			fmt.Fprintf(&b, "_...and %d more_\n", len(lists.Outgoing)-5)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (r *Router) handleCreateLock(ctx context.Context, identity string, in intent.Intent) (string, error) {
	owner, err := r.resolver.Resolve(ctx, identity)
	if err != nil {
		return "", err
	}
	created, ivl, err := r.payments.CreateLock(ctx, owner.Address, in.Amount, in.Duration, "")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ *Savings Locked!*\n\n🔒 %s: *%s MNEE* locked for *%s*\n\n_Your money is safe until then!_",
		idLabel(created.ID), in.Amount.String(), ivl.Label), nil
}

func (r *Router) handleUnlock(ctx context.Context, identity string, id int64) (string, error) {
	owner, err := r.resolver.Resolve(ctx, identity)
	if err != nil {
		return "", err
	}
	lock, txHash, err := r.payments.WithdrawLock(ctx, owner.Address, id)
	if err != nil {
		return "", err
	}
	amount, convErr := r.payments.FromUnits(ctx, lock.Amount)
	if convErr != nil {
		return fmt.Sprintf("✅ *Savings Withdrawn!*%s", txLink(r.explorer, txHash)), nil
	}
	return fmt.Sprintf("✅ *Savings Withdrawn!*\n\n💰 *%s MNEE* returned to your wallet!%s",
		amount.String(), txLink(r.explorer, txHash)), nil
}

func (r *Router) handleMyLocks(ctx context.Context, identity string) (string, error) {
	owner, err := r.resolver.Resolve(ctx, identity)
	if err != nil {
		return "", err
	}
	locks, err := r.payments.ListLocks(ctx, owner.Address)
	if err != nil {
		return "", err
	}
	if len(locks) == 0 {
		return "🔒 *No Active Savings*\n\nStart saving with:\n*lock 100 for 7 days*", nil
	}

	now := r.now().UTC()
	var b strings.Builder
	b.WriteString("🔒 *Your Savings*\n")
	for _, lock := range locks {
		amount, _ := r.payments.FromUnits(ctx, lock.Amount)
		fmt.Fprintf(&b, "━━━━━━━━━━\n#%d: *%s MNEE*\n", lock.ID, amount.String())
		if now.Before(lock.UnlockTime) {
			fmt.Fprintf(&b, "⏳ %s left\n", timeRemaining(lock.UnlockTime, now))
		} else {
			fmt.Fprintf(&b, "✅ Ready! → *unlock %d*\n", lock.ID)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (r *Router) handleCreateSchedule(ctx context.Context, identity string, in intent.Intent) (string, error) {
	sender, err := r.resolver.Resolve(ctx, identity)
	if err != nil {
		return "", err
	}
	recipient, err := r.resolver.Resolve(ctx, in.Recipient)
	if err != nil {
		return "", err
	}

	created, ivl, err := r.payments.CreateSchedule(ctx, sender.Address, recipient.Address, in.Amount, in.Interval, 0, "")
	if err != nil {
		return "", err
	}

	r.notify(ctx, recipient.Identity, fmt.Sprintf(
		"⏰ *Recurring Payment*\n\nYou'll receive *%s MNEE* every %s from +%s!",
		in.Amount.String(), ivl.Label, sender.Identity))

	return fmt.Sprintf("✅ *Auto-Pay Created!*\n\n⏰ %s: *%s MNEE* → +%s\n📆 Frequency: every *%s*\n\nPayments will run automatically!",
		idLabel(created.ID), in.Amount.String(), recipient.Identity, ivl.Label), nil
}

func (r *Router) handleCancelSchedule(ctx context.Context, identity string, id int64) (string, error) {
	sender, err := r.resolver.Resolve(ctx, identity)
	if err != nil {
		return "", err
	}
	if _, err := r.payments.CancelSchedule(ctx, sender.Address, id); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Auto-pay #%d cancelled.", id), nil
}

func (r *Router) handleMySchedules(ctx context.Context, identity string) (string, error) {
	sender, err := r.resolver.Resolve(ctx, identity)
	if err != nil {
		return "", err
	}
	schedules, err := r.payments.ListSchedules(ctx, sender.Address)
	if err != nil {
		return "", err
	}
	if len(schedules) == 0 {
		return "⏰ *No Active Auto-Pays*\n\nSet one up with:\n*schedule 25 to +91... weekly*", nil
	}

	var b strings.Builder
	b.WriteString("⏰ *Your Auto-Pays*\n")
	for _, sched := range schedules {
		amount, _ := r.payments.FromUnits(ctx, sched.Amount)
		recipient := shortAddress(sched.Recipient)
		if identity, ok := r.resolver.ByAddress(sched.Recipient); ok {
			recipient = "+" + identity
		}
		fmt.Fprintf(&b, "━━━━━━━━━━\n#%d: *%s MNEE* every %s\nTo: %s\nNext: %s\n",
			sched.ID, amount.String(), duration.Format(sched.IntervalSeconds),
			recipient, sched.NextPaymentTime.Format("2 Jan 15:04 MST"))
	}
	b.WriteString("\nCancel with: *cancel schedule [id]*")
	return b.String(), nil
}

// notify is for third parties (recipient, payer); failures are logged and
// swallowed.
func (r *Router) notify(ctx context.Context, identity, text string) {
	if _, err := r.notifier.Send(ctx, identity, text); err != nil {
		r.logger.Warn("notification failed", "identity", identity, "error", err)
	}
}
