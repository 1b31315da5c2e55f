package intent

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ConfidenceThreshold is the minimum oracle confidence accepted for
// dispatch. Anything below is treated as no match.
const ConfidenceThreshold = 0.7

// Oracle is the NLP fallback. ok is false when the oracle has no guess;
// errors are transient and treated the same way by the parser.
type Oracle interface {
	Query(ctx context.Context, message string) (Intent, bool, error)
}

// Parser applies the deterministic matchers in order, then the oracle.
type Parser struct {
	oracle Oracle
	logger *slog.Logger
}

// NewParser builds a parser. oracle may be nil, leaving only the
// deterministic grammar.
func NewParser(oracle Oracle, logger *slog.Logger) *Parser {
	return &Parser{oracle: oracle, logger: logger.With("component", "intent")}
}

// matcher is a pure function over lowercased, trimmed text.
type matcher func(text string) (Intent, bool)

var (
	sendPattern           = regexp.MustCompile(`(?:send|pay)\s+(\d+(?:\.\d+)?)\s*(?:mnee|mn)?\s+to\s+(@?\w+|[+\d]+)`)
	requestPattern        = regexp.MustCompile(`request\s+(\d+(?:\.\d+)?)\s*(?:mnee|mn)?\s+from\s+(@?\w+|[+\d]+)`)
	payRequestPattern     = regexp.MustCompile(`pay\s+request\s+(\d+)`)
	cancelRequestPattern  = regexp.MustCompile(`cancel\s+request\s+(\d+)`)
	lockPattern           = regexp.MustCompile(`lock\s+(\d+(?:\.\d+)?)\s*(?:mnee|mn)?\s+for\s+(.+)`)
	unlockPattern         = regexp.MustCompile(`(?:withdraw|unlock)\s+(?:lock\s+)?(\d+)`)
	schedulePattern       = regexp.MustCompile(`schedule\s+(\d+(?:\.\d+)?)\s*(?:mnee|mn)?\s+to\s+(@?\w+|[+\d]+)\s+(.+)`)
	cancelSchedulePattern = regexp.MustCompile(`cancel\s+schedule\s+(\d+)`)
)

// matchers in priority order; first hit wins.
var matchers = []matcher{
	matchHelp,
	matchBalance,
	matchAddress,
	matchDepositInfo,
	matchSend,
	matchCreateRequest,
	matchPayRequest,
	matchCancelRequest,
	matchMyRequests,
	matchCreateLock,
	matchUnlock,
	matchMyLocks,
	matchCreateSchedule,
	matchCancelSchedule,
	matchMySchedules,
}

// Parse returns the intent for a message, or ok=false when neither the
// grammar nor the oracle produced an acceptable result.
func (p *Parser) Parse(ctx context.Context, message string) (Intent, bool) {
	text := strings.ToLower(strings.TrimSpace(message))
	if text == "" {
		return Intent{}, false
	}

	for _, match := range matchers {
		if in, ok := match(text); ok {
			return in, true
		}
	}

	if p.oracle == nil {
		return Intent{}, false
	}
	in, ok, err := p.oracle.Query(ctx, message)
	if err != nil {
		p.logger.Warn("oracle query failed", "error", err)
		return Intent{}, false
	}
	if !ok || !in.Kind.known() || in.Confidence < ConfidenceThreshold {
		return Intent{}, false
	}
	in.Recipient = StripHandle(in.Recipient)
	in.Payer = StripHandle(in.Payer)
	p.logger.Info("oracle parsed message", "kind", in.Kind, "confidence", in.Confidence)
	return in, true
}

// StripHandle removes a leading @ or + from a recipient token.
func StripHandle(token string) string {
	token = strings.TrimPrefix(token, "@")
	return strings.TrimPrefix(token, "+")
}

func matchHelp(text string) (Intent, bool) {
	switch text {
	case "help", "/help", "?":
		return Intent{Kind: KindHelp}, true
	}
	return Intent{}, false
}

func matchBalance(text string) (Intent, bool) {
	switch text {
	case "balance", "bal", "check balance":
		return Intent{Kind: KindBalance}, true
	}
	return Intent{}, false
}

func matchAddress(text string) (Intent, bool) {
	switch text {
	case "address", "my address", "wallet":
		return Intent{Kind: KindAddress}, true
	}
	return Intent{}, false
}

func matchDepositInfo(text string) (Intent, bool) {
	if text == "deposit" || text == "add money" || strings.Contains(text, "add funds") {
		return Intent{Kind: KindDepositInfo}, true
	}
	return Intent{}, false
}

func matchSend(text string) (Intent, bool) {
	m := sendPattern.FindStringSubmatch(text)
	if m == nil {
		return Intent{}, false
	}
	amount, err := decimal.NewFromString(m[1])
	if err != nil {
		return Intent{}, false
	}
	return Intent{Kind: KindSend, Amount: amount, Recipient: StripHandle(m[2])}, true
}

func matchCreateRequest(text string) (Intent, bool) {
	m := requestPattern.FindStringSubmatch(text)
	if m == nil {
		return Intent{}, false
	}
	amount, err := decimal.NewFromString(m[1])
	if err != nil {
		return Intent{}, false
	}
	return Intent{Kind: KindCreateRequest, Amount: amount, Payer: StripHandle(m[2])}, true
}

func matchPayRequest(text string) (Intent, bool) {
	return matchTargeted(payRequestPattern, KindPayRequest, text)
}

func matchCancelRequest(text string) (Intent, bool) {
	return matchTargeted(cancelRequestPattern, KindCancelRequest, text)
}

func matchMyRequests(text string) (Intent, bool) {
	if text == "my requests" || text == "show requests" {
		return Intent{Kind: KindMyRequests}, true
	}
	return Intent{}, false
}

func matchCreateLock(text string) (Intent, bool) {
	m := lockPattern.FindStringSubmatch(text)
	if m == nil {
		return Intent{}, false
	}
	amount, err := decimal.NewFromString(m[1])
	if err != nil {
		return Intent{}, false
	}
	return Intent{Kind: KindCreateLock, Amount: amount, Duration: strings.TrimSpace(m[2])}, true
}

func matchUnlock(text string) (Intent, bool) {
	return matchTargeted(unlockPattern, KindUnlock, text)
}

func matchMyLocks(text string) (Intent, bool) {
	if text == "my locks" || text == "show locks" || text == "savings" {
		return Intent{Kind: KindMyLocks}, true
	}
	return Intent{}, false
}

func matchCreateSchedule(text string) (Intent, bool) {
	m := schedulePattern.FindStringSubmatch(text)
	if m == nil {
		return Intent{}, false
	}
	amount, err := decimal.NewFromString(m[1])
	if err != nil {
		return Intent{}, false
	}
	return Intent{
		Kind:      KindCreateSchedule,
		Amount:    amount,
		Recipient: StripHandle(m[2]),
		Interval:  strings.TrimSpace(m[3]),
	}, true
}

func matchCancelSchedule(text string) (Intent, bool) {
	return matchTargeted(cancelSchedulePattern, KindCancelSchedule, text)
}

func matchMySchedules(text string) (Intent, bool) {
	if text == "my schedules" || text == "active schedules" {
		return Intent{Kind: KindMySchedules}, true
	}
	return Intent{}, false
}

func matchTargeted(pattern *regexp.Regexp, kind Kind, text string) (Intent, bool) {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return Intent{}, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return Intent{}, false
	}
	return Intent{Kind: kind, TargetID: id}, true
}
