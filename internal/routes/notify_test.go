package routes

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/xaviersharwin10/mnee-chat/internal/config"
	"github.com/xaviersharwin10/mnee-chat/internal/logging"
	"github.com/xaviersharwin10/mnee-chat/internal/notification"
)

type memoNotifier struct {
	identity string
	text     string
}

func (n *memoNotifier) Send(_ context.Context, identity, text string) (notification.Receipt, error) {
	n.identity = identity
	n.text = text
	return notification.Receipt{ID: "memo"}, nil
}

func newNotifyApp(notifier notification.Notifier) *fiber.App {
	app := fiber.New()
	RegisterNotifyRoutes(app.Group("/api"), Deps{
		Cfg:      config.Config{ExplorerBaseURL: "https://sepolia.basescan.org"},
		Logger:   logging.Discard(),
		Notifier: notifier,
	})
	return app
}

func TestNotifyTransferSendsDepositNotice(t *testing.T) {
	notifier := &memoNotifier{}
	app := newNotifyApp(notifier)

	body := `{"to_phone":"+91 98765 43210","amount":"12.5","tx_hash":"0xabc","from_address":"0x1234567890"}`
	req := httptest.NewRequest("POST", "/api/notify-transfer", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if notifier.identity != "919876543210" {
		t.Fatalf("identity = %q, want normalized digits", notifier.identity)
	}
	if !strings.Contains(notifier.text, "You received 12.5 MNEE!") {
		t.Fatalf("notice = %q", notifier.text)
	}
	if !strings.Contains(notifier.text, "From: 0x123456...") {
		t.Fatalf("sender line missing: %q", notifier.text)
	}
	if !strings.Contains(notifier.text, "https://sepolia.basescan.org/tx/0xabc") {
		t.Fatalf("explorer link missing: %q", notifier.text)
	}
}

func TestNotifyTransferExternalSenderWithoutHash(t *testing.T) {
	notifier := &memoNotifier{}
	app := newNotifyApp(notifier)

	body := `{"to_phone":"919876543210","amount":"3"}`
	req := httptest.NewRequest("POST", "/api/notify-transfer", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(notifier.text, "From: External Wallet") {
		t.Fatalf("fallback sender missing: %q", notifier.text)
	}
	if strings.Contains(notifier.text, "/tx/") {
		t.Fatalf("unexpected explorer link: %q", notifier.text)
	}
}

func TestNotifyTransferRejectsMissingFields(t *testing.T) {
	app := newNotifyApp(&memoNotifier{})

	for _, body := range []string{`{}`, `{"to_phone":"919876543210"}`, `{"to_phone":"---","amount":"1"}`} {
		req := httptest.NewRequest("POST", "/api/notify-transfer", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if resp.StatusCode != 400 {
			t.Fatalf("body %s: status = %d, want 400", body, resp.StatusCode)
		}
	}
}
