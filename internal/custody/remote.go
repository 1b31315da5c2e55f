package custody

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteBackend talks to the wallet-as-a-service provider over REST. The
// provider names accounts, holds keys and signs transactions; this client
// never sees private key material.
type RemoteBackend struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRemoteBackend builds a provider client.
func NewRemoteBackend(baseURL, apiKey string) *RemoteBackend {
	return &RemoteBackend{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Kind reports the custody mode.
func (b *RemoteBackend) Kind() BackendKind { return RemoteCustody }

type accountResponse struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type submitRequest struct {
	To      string `json:"to"`
	Data    string `json:"data"`
	Network string `json:"network"`
}

type submitResponse struct {
	TransactionHash string `json:"transactionHash"`
}

type faucetRequest struct {
	Address string `json:"address"`
	Network string `json:"network"`
	Token   string `json:"token"`
}

// GetOrCreate fetches the account by name and creates it on not-found.
// Creation races are resolved by the provider: two concurrent creates for one
// name yield the same account.
func (b *RemoteBackend) GetOrCreate(ctx context.Context, accountName string) (Account, error) {
	var acct accountResponse
	err := b.do(ctx, http.MethodGet, "/v1/accounts/"+accountName, nil, &acct)
	if err == nil {
		return Account{Name: accountName, Address: acct.Address}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Account{}, fmt.Errorf("get account %s: %w", accountName, err)
	}

	err = b.do(ctx, http.MethodPost, "/v1/accounts", map[string]string{"name": accountName}, &acct)
	if err != nil {
		return Account{}, fmt.Errorf("create account %s: %w", accountName, err)
	}
	return Account{Name: accountName, Address: acct.Address}, nil
}

// SubmitTransaction asks the provider to sign and broadcast calldata from the
// named account's address.
func (b *RemoteBackend) SubmitTransaction(ctx context.Context, from, to, data, network string) (string, error) {
	var resp submitResponse
	path := "/v1/accounts/" + from + "/transactions"
	if err := b.do(ctx, http.MethodPost, path, submitRequest{To: to, Data: data, Network: network}, &resp); err != nil {
		return "", fmt.Errorf("submit transaction: %w", err)
	}
	return resp.TransactionHash, nil
}

// RequestFaucet asks the provider's testnet faucet to fund the address.
func (b *RemoteBackend) RequestFaucet(ctx context.Context, address, network, token string) (string, error) {
	var resp submitResponse
	if err := b.do(ctx, http.MethodPost, "/v1/faucet", faucetRequest{Address: address, Network: network, Token: token}, &resp); err != nil {
		return "", fmt.Errorf("request faucet: %w", err)
	}
	return resp.TransactionHash, nil
}

func (b *RemoteBackend) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
