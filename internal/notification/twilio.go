package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TwilioNotifier sends WhatsApp messages through the Twilio REST API.
type TwilioNotifier struct {
	accountSID string
	authToken  string
	from       string
	client     *http.Client
}

// NewTwilioNotifier builds the notifier. from is the sending number, e.g.
// "whatsapp:+14155238886".
func NewTwilioNotifier(accountSID, authToken, from string) *TwilioNotifier {
	return &TwilioNotifier{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Send posts one message. The identity is a normalized phone number; the
// channel prefix and plus sign are reattached here.
func (n *TwilioNotifier) Send(ctx context.Context, identity, text string) (Receipt, error) {
	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", n.accountSID)

	form := url.Values{}
	form.Set("To", "whatsapp:+"+identity)
	form.Set("From", n.from)
	form.Set("Body", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Receipt{}, err
	}
	req.SetBasicAuth(n.accountSID, n.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("twilio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Receipt{}, fmt.Errorf("twilio: status %d", resp.StatusCode)
	}

	var body struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Receipt{}, fmt.Errorf("twilio: decode: %w", err)
	}
	return Receipt{ID: body.SID}, nil
}
