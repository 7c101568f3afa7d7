package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PriceStore is the persistent tier of the price cache. Entries are
// upserted whole; TTL interpretation belongs to the caller, which stores
// its own timestamp inside the value.
type PriceStore struct {
	pool *pgxpool.Pool
}

// NewPriceStore returns a store over the global pool, or nil when the
// database is not initialized.
func NewPriceStore() *PriceStore {
	if Pool == nil {
		return nil
	}
	return &PriceStore{pool: Pool}
}

func (s *PriceStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM price_cache WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading price cache %q: %w", key, err)
	}
	return value, true, nil
}

func (s *PriceStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO price_cache (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("writing price cache %q: %w", key, err)
	}
	return nil
}
