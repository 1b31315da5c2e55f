package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/xaviersharwin10/mnee-chat/internal/custody"
)

// ErrEmptyIdentity indicates the identity contained no digits at all.
var ErrEmptyIdentity = errors.New("identity has no digits")

// Resolver maps normalized identities to wallet handles. The custody backend
// is chosen once per process. Resolved handles are cached forever (addresses
// never change) and mirrored to the repository for reverse lookup across
// restarts.
//
// Resolve is idempotent under concurrency without an in-process provisioning
// lock: two racing "not seen" observations may both call the backend, and the
// backend's deterministic account naming guarantees they converge on the same
// address.
type Resolver struct {
	backend custody.Backend
	repo    Repository
	logger  *slog.Logger

	mu        sync.RWMutex
	byID      map[string]Handle
	byAddress map[string]string
}

// NewResolver builds a resolver and warms its cache from the repository.
func NewResolver(ctx context.Context, backend custody.Backend, repo Repository, logger *slog.Logger) (*Resolver, error) {
	r := &Resolver{
		backend:   backend,
		repo:      repo,
		logger:    logger,
		byID:      make(map[string]Handle),
		byAddress: make(map[string]string),
	}

	persisted, err := repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load identity map: %w", err)
	}
	for _, h := range persisted {
		r.remember(h)
	}
	if len(persisted) > 0 {
		logger.Info("identity map loaded", "identities", len(persisted))
	}
	return r, nil
}

// Backend reports the custody mode chosen for this process.
func (r *Resolver) Backend() custody.BackendKind { return r.backend.Kind() }

// Known reports whether the identity has been resolved (or persisted) before,
// without provisioning anything.
func (r *Resolver) Known(identity string) bool {
	normalized := Normalize(identity)
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[normalized]
	return ok
}

// Resolve returns the wallet handle for an identity, provisioning it on first
// sight. All identity strings normalizing to the same digits return the same
// handle.
func (r *Resolver) Resolve(ctx context.Context, identity string) (Handle, error) {
	normalized := Normalize(identity)
	if normalized == "" {
		return Handle{}, ErrEmptyIdentity
	}

	r.mu.RLock()
	h, ok := r.byID[normalized]
	r.mu.RUnlock()
	if ok {
		return h, nil
	}

	acct, err := r.backend.GetOrCreate(ctx, custody.AccountName(normalized))
	if err != nil {
		return Handle{}, fmt.Errorf("provision wallet for %s: %w", normalized, err)
	}

	h = Handle{
		Identity:  normalized,
		Address:   acct.Address,
		Backend:   r.backend.Kind(),
		CreatedAt: time.Now().UTC(),
	}

	// A racing resolve may have won; the backend returned the same address
	// either way, so first-write-wins keeps the cache consistent.
	r.mu.Lock()
	if existing, ok := r.byID[normalized]; ok {
		h = existing
	} else {
		r.cacheLocked(h)
	}
	r.mu.Unlock()

	if err := r.repo.Save(ctx, h); err != nil {
		// The mapping is re-derivable from the backend; losing a write only
		// costs reverse lookups after a restart.
		r.logger.Warn("persist identity mapping", "identity", normalized, "error", err)
	}

	r.logger.Info("wallet resolved", "identity", normalized, "address", h.Address, "backend", string(h.Backend))
	return h, nil
}

// ByAddress reverse-resolves an on-ledger address to an identity. Only
// succeeds for identities resolved at least once in-process (or warmed from
// the repository).
func (r *Resolver) ByAddress(address string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identity, ok := r.byAddress[strings.ToLower(address)]
	return identity, ok
}

func (r *Resolver) remember(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[h.Identity]; !ok {
		r.cacheLocked(h)
	}
}

func (r *Resolver) cacheLocked(h Handle) {
	r.byID[h.Identity] = h
	r.byAddress[strings.ToLower(h.Address)] = h.Identity
}
