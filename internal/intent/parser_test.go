package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/xaviersharwin10/mnee-chat/internal/logging"
)

type fakeOracle struct {
	intent Intent
	ok     bool
	err    error
	calls  int
}

func (o *fakeOracle) Query(context.Context, string) (Intent, bool, error) {
	o.calls++
	return o.intent, o.ok, o.err
}

func TestParseDeterministic(t *testing.T) {
	p := NewParser(nil, logging.Discard())
	ctx := context.Background()

	cases := []struct {
		text string
		want Intent
	}{
		{"help", Intent{Kind: KindHelp}},
		{"?", Intent{Kind: KindHelp}},
		{"Balance", Intent{Kind: KindBalance}},
		{"bal", Intent{Kind: KindBalance}},
		{"my address", Intent{Kind: KindAddress}},
		{"deposit", Intent{Kind: KindDepositInfo}},
		{"please add funds here", Intent{Kind: KindDepositInfo}},
		{"send 10 to +919876543210", Intent{Kind: KindSend, Amount: decimal.NewFromInt(10), Recipient: "919876543210"}},
		{"pay 2.5 mnee to @alice", Intent{Kind: KindSend, Amount: decimal.RequireFromString("2.5"), Recipient: "alice"}},
		{"request 7 from +14155550100", Intent{Kind: KindCreateRequest, Amount: decimal.NewFromInt(7), Payer: "14155550100"}},
		{"pay request 3", Intent{Kind: KindPayRequest, TargetID: 3}},
		{"cancel request 4", Intent{Kind: KindCancelRequest, TargetID: 4}},
		{"my requests", Intent{Kind: KindMyRequests}},
		{"lock 50 for 2 days", Intent{Kind: KindCreateLock, Amount: decimal.NewFromInt(50), Duration: "2 days"}},
		{"unlock 2", Intent{Kind: KindUnlock, TargetID: 2}},
		{"withdraw lock 9", Intent{Kind: KindUnlock, TargetID: 9}},
		{"savings", Intent{Kind: KindMyLocks}},
		{"schedule 5 to @bob every 1 min", Intent{Kind: KindCreateSchedule, Amount: decimal.NewFromInt(5), Recipient: "bob", Interval: "every 1 min"}},
		{"schedule 1 to +4915112345678 weekly", Intent{Kind: KindCreateSchedule, Amount: decimal.NewFromInt(1), Recipient: "4915112345678", Interval: "weekly"}},
		{"cancel schedule 6", Intent{Kind: KindCancelSchedule, TargetID: 6}},
		{"active schedules", Intent{Kind: KindMySchedules}},
	}

	for _, tc := range cases {
		got, ok := p.Parse(ctx, tc.text)
		if !ok {
			t.Fatalf("Parse(%q) did not match", tc.text)
		}
		if got.Kind != tc.want.Kind || !got.Amount.Equal(tc.want.Amount) ||
			got.Recipient != tc.want.Recipient || got.Payer != tc.want.Payer ||
			got.Duration != tc.want.Duration || got.Interval != tc.want.Interval ||
			got.TargetID != tc.want.TargetID {
			t.Fatalf("Parse(%q) = %+v, want %+v", tc.text, got, tc.want)
		}
		if got.Confidence != 0 {
			t.Fatalf("deterministic match carries confidence: %+v", got)
		}
	}
}

func TestParseNoMatchWithoutOracle(t *testing.T) {
	p := NewParser(nil, logging.Discard())
	for _, text := range []string{"", "   ", "hello there", "send money please"} {
		if _, ok := p.Parse(context.Background(), text); ok {
			t.Fatalf("Parse(%q) matched unexpectedly", text)
		}
	}
}

func TestParseOracleFallback(t *testing.T) {
	oracle := &fakeOracle{
		intent: Intent{Kind: KindSend, Amount: decimal.NewFromInt(50), Recipient: "+12345", Confidence: 0.9},
		ok:     true,
	}
	p := NewParser(oracle, logging.Discard())

	got, ok := p.Parse(context.Background(), "wire fifty bucks over to +12345")
	if !ok || got.Kind != KindSend {
		t.Fatalf("Parse = %+v, ok=%v", got, ok)
	}
	if got.Recipient != "12345" {
		t.Fatalf("recipient not stripped: %q", got.Recipient)
	}
	if oracle.calls != 1 {
		t.Fatalf("oracle calls = %d", oracle.calls)
	}
}

func TestParseOracleNotConsultedOnGrammarHit(t *testing.T) {
	oracle := &fakeOracle{ok: true, intent: Intent{Kind: KindHelp, Confidence: 1}}
	p := NewParser(oracle, logging.Discard())

	if _, ok := p.Parse(context.Background(), "send 10 to +919876543210"); !ok {
		t.Fatal("grammar should match")
	}
	if oracle.calls != 0 {
		t.Fatal("oracle consulted despite deterministic match")
	}
}

func TestParseOracleGates(t *testing.T) {
	cases := []struct {
		name   string
		oracle *fakeOracle
	}{
		{"low confidence", &fakeOracle{ok: true, intent: Intent{Kind: KindSend, Confidence: 0.5}}},
		{"other kind", &fakeOracle{ok: true, intent: Intent{Kind: KindOther, Confidence: 0.95}}},
		{"unknown kind", &fakeOracle{ok: true, intent: Intent{Kind: "REFUND", Confidence: 0.95}}},
		{"no guess", &fakeOracle{ok: false}},
		{"error", &fakeOracle{err: errors.New("boom")}},
	}
	for _, tc := range cases {
		p := NewParser(tc.oracle, logging.Discard())
		if _, ok := p.Parse(context.Background(), "mystery text"); ok {
			t.Fatalf("%s: oracle result should be rejected", tc.name)
		}
	}
}

func TestStripHandle(t *testing.T) {
	if StripHandle("@alice") != "alice" || StripHandle("+4915112345678") != "4915112345678" || StripHandle("bob") != "bob" {
		t.Fatal("handle stripping broken")
	}
}
