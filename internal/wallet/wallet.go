// Package wallet resolves phone identities into wallet handles across custody
// backends, with idempotent provisioning and reverse lookup.
package wallet

import (
	"strings"
	"time"

	"github.com/xaviersharwin10/mnee-chat/internal/custody"
)

// Handle is a resolved wallet for a normalized identity. One address per
// identity, stable for the process lifetime.
type Handle struct {
	Identity  string
	Address   string
	Backend   custody.BackendKind
	CreatedAt time.Time
}

// Normalize strips every non-digit character from an identity so that any two
// formattings of the same number ("+91 98765-43210", "919876543210") resolve
// identically. Mandatory before any lookup, cache access or derivation.
func Normalize(identity string) string {
	var b strings.Builder
	b.Grow(len(identity))
	for _, r := range identity {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
