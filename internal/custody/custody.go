// Package custody abstracts the subsystem holding or deriving private keys on
// an identity's behalf. Two interchangeable backends exist: a remote
// wallet-as-a-service provider and a deterministic local derivation.
package custody

import (
	"context"
	"errors"
)

// BackendKind tags which custody mode produced a wallet handle.
type BackendKind string

const (
	// RemoteCustody delegates key custody to an external provider.
	RemoteCustody BackendKind = "REMOTE_CUSTODY"
	// DeterministicLocal derives keys from a salted hash of the identity.
	DeterministicLocal BackendKind = "DETERMINISTIC_LOCAL"
)

var (
	// ErrNotFound indicates the provider has no account under that name.
	ErrNotFound = errors.New("custody account not found")
	// ErrUnsupported indicates the backend cannot perform the operation.
	ErrUnsupported = errors.New("operation not supported by custody backend")
)

// Account is a provisioned custody account.
type Account struct {
	Name    string
	Address string
}

// Backend provisions accounts and submits signed transactions. GetOrCreate
// must be idempotent per account name: the deterministic naming scheme makes
// concurrent provisioning attempts converge on one account without any
// in-process locking.
type Backend interface {
	Kind() BackendKind
	GetOrCreate(ctx context.Context, accountName string) (Account, error)
	SubmitTransaction(ctx context.Context, from, to, data, network string) (string, error)
	RequestFaucet(ctx context.Context, address, network, token string) (string, error)
}

// AccountName builds the provider-side name for a normalized identity.
// Deterministic so repeated provisioning is idempotent at the provider.
func AccountName(normalizedIdentity string) string {
	return "mneechat-" + normalizedIdentity
}
