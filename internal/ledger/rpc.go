package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// RPCClient is a minimal JSON-RPC client for the read half of the ledger
// surface (eth_call and receipt lookups). Writes go through custody, which
// signs; this client never carries keys.
type RPCClient struct {
	url    string
	client *http.Client
}

// NewRPCClient builds a client for the given endpoint.
func NewRPCClient(url string) *RPCClient {
	return &RPCClient{url: url, client: &http.Client{Timeout: 30 * time.Second}}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Receipt is the subset of a transaction receipt the engine reads: enough to
// recover creation events.
type Receipt struct {
	Status string       `json:"status"`
	Logs   []ReceiptLog `json:"logs"`
}

// ReceiptLog is one emitted event.
type ReceiptLog struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}

func (c *RPCClient) call(ctx context.Context, method string, params []any, out any) error {
	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("rpc %s: decode: %w", method, err)
	}
	if decoded.Error != nil {
		return fmt.Errorf("rpc %s: %s (%d)", method, decoded.Error.Message, decoded.Error.Code)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(decoded.Result, out)
}

// EthCall executes a read-only contract call and returns the raw return
// data.
func (c *RPCClient) EthCall(ctx context.Context, to, data string) ([]byte, error) {
	params := []any{map[string]string{"to": to, "data": data}, "latest"}
	var result string
	if err := c.call(ctx, "eth_call", params, &result); err != nil {
		return nil, err
	}
	return decodeHex(result)
}

// TransactionReceipt fetches a receipt. Returns nil (no error) while the
// transaction is still pending.
func (c *RPCClient) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	var receipt *Receipt
	if err := c.call(ctx, "eth_getTransactionReceipt", []any{txHash}, &receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}
