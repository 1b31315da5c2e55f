package custody

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

// LocalBackend derives wallets from a one-way hash of a fixed secret salt and
// the normalized identity. Fully reproducible: nothing is persisted, the same
// salt and identity always yield the same key and address. Transactions are
// submitted through a node that manages the derived accounts (dev-node
// posture); the key itself never leaves this process.
type LocalBackend struct {
	salt   string
	rpcURL string
	client *http.Client
}

// NewLocalBackend builds the deterministic backend against the given RPC
// endpoint.
func NewLocalBackend(salt, rpcURL string) *LocalBackend {
	return &LocalBackend{
		salt:   salt,
		rpcURL: rpcURL,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Kind reports the custody mode.
func (b *LocalBackend) Kind() BackendKind { return DeterministicLocal }

// GetOrCreate derives the account. There is no remote state, so provisioning
// is trivially idempotent.
func (b *LocalBackend) GetOrCreate(_ context.Context, accountName string) (Account, error) {
	normalized := strings.TrimPrefix(accountName, "mneechat-")
	key := b.deriveKey(normalized)
	return Account{Name: accountName, Address: deriveAddress(key)}, nil
}

// SubmitTransaction sends calldata from the derived address via
// eth_sendTransaction. The target node must manage the account.
func (b *LocalBackend) SubmitTransaction(ctx context.Context, from, to, data, _ string) (string, error) {
	params := []any{map[string]string{"from": from, "to": to, "data": data}}
	var txHash string
	if err := b.rpcCall(ctx, "eth_sendTransaction", params, &txHash); err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}
	return txHash, nil
}

// RequestFaucet is not available for locally derived wallets.
func (b *LocalBackend) RequestFaucet(context.Context, string, string, string) (string, error) {
	return "", ErrUnsupported
}

// deriveKey hashes the fixed salt with the normalized identity. One-way: the
// identity cannot be recovered from the key, and the key is re-derived on
// every use rather than stored.
func (b *LocalBackend) deriveKey(normalizedIdentity string) []byte {
	seed := "mneechat-" + normalizedIdentity + "-" + b.salt
	sum := sha256.Sum256([]byte(seed))
	return sum[:]
}

// deriveAddress maps key material to a stable 20-byte hex address via
// Keccak-256, the same shape the ledger uses for account addresses.
func deriveAddress(key []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(key)
	digest := h.Sum(nil)
	return "0x" + hex.EncodeToString(digest[12:])
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

func (b *LocalBackend) rpcCall(ctx context.Context, method string, params []any, out any) error {
	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return err
	}
	if decoded.Error != nil {
		return fmt.Errorf("rpc %s: %s (%d)", method, decoded.Error.Message, decoded.Error.Code)
	}
	return json.Unmarshal(decoded.Result, out)
}
