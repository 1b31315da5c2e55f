package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xaviersharwin10/mnee-chat/internal/custody"
	"github.com/xaviersharwin10/mnee-chat/internal/duration"
	"github.com/xaviersharwin10/mnee-chat/internal/ledger"
	"github.com/xaviersharwin10/mnee-chat/internal/payments"
	"github.com/xaviersharwin10/mnee-chat/internal/wallet"
)

// User-facing texts. WhatsApp renders *bold* and _italic_; keep lines short.

func welcomeMessage(profileName, address string) string {
	name := "there"
	if profileName != "" {
		name = strings.Fields(profileName)[0]
	}
	return fmt.Sprintf(`👋 *Hey %s! Welcome to MNEEChat*

I just created your personal crypto wallet! 🎉

💳 *Your Wallet Address:*
`+"`%s`"+`

✨ *What you can do:*

💸 *Send Money*
   "send 10 to +919876543210"

📩 *Request Payment*
   "request 50 from +91..."

🔒 *Save Money*
   "lock 100 for 7 days"

⏰ *Auto-Pay*
   "schedule 25 to +91... weekly"

Type *help* anytime for all commands!`, name, address)
}

const helpMessage = `📚 *MNEEChat Commands*

━━━ 💰 *Wallet* ━━━
• *balance* - Check MNEE balance
• *address* - Your wallet address
• *deposit* - How to add funds

━━━ 💸 *Transfers* ━━━
• *send 50 to +91...*
• *request 20 from +91...*
• *my requests* - View pending
• *pay request 1* - Pay request

━━━ 🔒 *Savings* ━━━
• *lock 100 for 7 days*
• *my locks* - View savings
• *unlock 1* - Withdraw

━━━ ⏰ *Recurring* ━━━
• *schedule 25 to +91... weekly*
• *my schedules* - View active
• *cancel schedule 1*

💡 _You can also chat naturally!_
   "please send 10 to +91..."`

const rateLimitMessage = `⏳ *Slow down!*
Please wait a moment before sending more commands.`

func depositMessage(address string) string {
	return fmt.Sprintf(`💳 *Add Funds*

📬 Send MNEE tokens to:

`+"`%s`"+`

Type *balance* once they arrive.`, address)
}

func addressMessage(address, explorer string) string {
	msg := fmt.Sprintf("🔐 *Your MNEEChat Wallet*\n\n`%s`\n\n📋 _Tap to copy, then paste anywhere!_", address)
	if explorer != "" {
		msg += fmt.Sprintf("\n\n🔗 View on explorer:\n%s/address/%s", explorer, address)
	}
	return msg
}

func balanceMessage(balance decimal.Decimal, address string) string {
	return fmt.Sprintf("💰 *Your Balance*\n\n*%s MNEE*\n\n💳 Wallet: `%s`", balance.String(), shortAddress(address))
}

func shortAddress(address string) string {
	if len(address) < 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

func txLink(explorer, txHash string) string {
	if explorer == "" || txHash == "" {
		return ""
	}
	return fmt.Sprintf("\n\n🔗 Receipt:\n%s/tx/%s", explorer, txHash)
}

// pendingIDLine replaces the id in confirmations when the creation event was
// not observed in time.
func idLabel(id int64) string {
	if id == ledger.PendingID {
		return "(id pending, check the list command shortly)"
	}
	return fmt.Sprintf("#%d", id)
}

func requestStatus(r ledger.PaymentRequest) string {
	switch {
	case r.Fulfilled:
		return "✅ Paid"
	case r.Cancelled:
		return "❌ Cancelled"
	default:
		return "🕒 Pending"
	}
}

func timeRemaining(until time.Time, now time.Time) string {
	if !now.Before(until) {
		return "now"
	}
	return duration.Format(int64(until.Sub(now) / time.Second))
}

const genericErrorMessage = `❌ *Oops!* Something went wrong.

Try again or type *help* for commands.`

// userMessage maps an operation error to a short human-readable reply.
// Internal diagnostics never reach the chat channel.
func userMessage(err error) string {
	switch {
	case errors.Is(err, payments.ErrInvalidAmount):
		return "❌ Invalid amount. Use a positive number like *send 10 to +91...*"
	case errors.Is(err, payments.ErrInvalidDuration):
		return "❌ I couldn't understand that duration. Try *7 days*, *2 hours* or *weekly*."
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "❌ Insufficient MNEE balance. Please check your balance and try again."
	case errors.Is(err, ledger.ErrNotFound):
		return "❌ Not found. Check the id and try again."
	case errors.Is(err, ledger.ErrAlreadyFulfilled):
		return "ℹ️ That request was already paid."
	case errors.Is(err, ledger.ErrCancelled):
		return "ℹ️ That request was cancelled."
	case errors.Is(err, ledger.ErrAlreadyWithdrawn):
		return "ℹ️ That lock was already withdrawn."
	case errors.Is(err, ledger.ErrLocked):
		return "⏳ Not unlocked yet. Type *my locks* to see when it opens."
	case errors.Is(err, ledger.ErrInactive):
		return "ℹ️ That auto-pay is no longer active."
	case errors.Is(err, ledger.ErrNotConfigured):
		return "❌ This feature is not available right now."
	case errors.Is(err, payments.ErrFaucetUnavailable):
		return "❌ The faucet is not available right now."
	case errors.Is(err, wallet.ErrEmptyIdentity):
		return "❌ Invalid recipient. Use a phone number like *+919876543210*."
	case errors.Is(err, custody.ErrUnsupported):
		return "❌ This feature is not available right now."
	default:
		return genericErrorMessage
	}
}
