package wallet

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xaviersharwin10/mnee-chat/internal/custody"
)

// Repository persists the identity→address mapping. This is the only durable
// state the engine owns; private key material is never stored.
type Repository interface {
	Save(ctx context.Context, h Handle) error
	All(ctx context.Context) ([]Handle, error)
}

// PostgresRepository stores the mapping in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed mapping store.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save upserts the mapping for a normalized identity. Addresses never change,
// so a conflicting insert keeps the existing row.
func (r *PostgresRepository) Save(ctx context.Context, h Handle) error {
	_, err := r.db.Exec(ctx, `INSERT INTO wallet_identities (identity, address, backend, created_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (identity) DO NOTHING`,
		h.Identity, h.Address, string(h.Backend), h.CreatedAt.UTC())
	return err
}

// All loads every persisted mapping, used to warm the in-process cache so
// reverse lookups survive restarts.
func (r *PostgresRepository) All(ctx context.Context) ([]Handle, error) {
	rows, err := r.db.Query(ctx, `SELECT identity, address, backend, created_at FROM wallet_identities`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var handles []Handle
	for rows.Next() {
		var h Handle
		var backend string
		var createdAt time.Time
		if err := rows.Scan(&h.Identity, &h.Address, &backend, &createdAt); err != nil {
			return nil, err
		}
		h.Backend = custody.BackendKind(backend)
		h.CreatedAt = createdAt.UTC()
		handles = append(handles, h)
	}
	return handles, rows.Err()
}
