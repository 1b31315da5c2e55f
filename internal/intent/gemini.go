package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

const geminiPrompt = `You are a payment bot command parser. Parse the message into a JSON command.
Supported types: SEND (amount, recipient), CREATE_REQUEST (amount, payer),
CREATE_LOCK (amount, duration), CREATE_SCHEDULE (amount, recipient, interval),
PAY_REQUEST (id), CANCEL_REQUEST (id), UNLOCK (id), CANCEL_SCHEDULE (id),
BALANCE, ADDRESS, DEPOSIT_INFO, MY_REQUESTS, MY_LOCKS, MY_SCHEDULES, HELP.

Rules:
- "pay +12345 50" -> {"type":"SEND","amount":"50","recipient":"12345","confidence":0.9}
- Convert number words ("fifty" -> "50"). Amounts are JSON strings.
- Phone numbers keep digits only.
- Always include "confidence" in [0,1]: how sure you are of the parse.
- If the message is not a wallet command, respond with exactly: null

Message: %q

Respond with ONLY valid JSON.`

// GeminiOracle queries the Gemini REST API as the NLP fallback.
type GeminiOracle struct {
	apiKey string
	model  string
	client *http.Client
}

// NewGeminiOracle builds the oracle, or nil when no API key is configured
// (the parser then runs grammar-only).
func NewGeminiOracle(apiKey, model string) *GeminiOracle {
	if apiKey == "" {
		return nil
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiOracle{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type oracleResult struct {
	Type       string          `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	Recipient  string          `json:"recipient"`
	Payer      string          `json:"payer"`
	Duration   string          `json:"duration"`
	Interval   string          `json:"interval"`
	ID         int64           `json:"id"`
	Confidence float64         `json:"confidence"`
}

// Query implements Oracle.
func (o *GeminiOracle) Query(ctx context.Context, message string) (Intent, bool, error) {
	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: fmt.Sprintf(geminiPrompt, message)}}}},
	})
	if err != nil {
		return Intent{}, false, err
	}

	url := fmt.Sprintf(geminiEndpoint, o.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Intent{}, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return Intent{}, false, fmt.Errorf("gemini: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Intent{}, false, fmt.Errorf("gemini: status %d", resp.StatusCode)
	}

	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Intent{}, false, fmt.Errorf("gemini: decode: %w", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return Intent{}, false, nil
	}

	text := decoded.Candidates[0].Content.Parts[0].Text
	text = strings.TrimSpace(strings.NewReplacer("```json", "", "```", "").Replace(text))
	if text == "" || text == "null" {
		return Intent{}, false, nil
	}

	var result oracleResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return Intent{}, false, fmt.Errorf("gemini: bad command json: %w", err)
	}
	return Intent{
		Kind:       Kind(strings.ToUpper(result.Type)),
		Amount:     result.Amount,
		Recipient:  result.Recipient,
		Payer:      result.Payer,
		Duration:   result.Duration,
		Interval:   result.Interval,
		TargetID:   result.ID,
		Confidence: result.Confidence,
	}, true, nil
}
