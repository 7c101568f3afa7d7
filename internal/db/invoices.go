package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miMejorLuz/savings-advisor-service/internal/models"
)

// InvoiceArchive persists extracted invoices. The full record is kept as
// JSON; a few columns are lifted out for querying.
type InvoiceArchive struct {
	pool *pgxpool.Pool
}

// NewInvoiceArchive returns an archive over the global pool, or nil when
// the database is not initialized.
func NewInvoiceArchive() *InvoiceArchive {
	if Pool == nil {
		return nil
	}
	return &InvoiceArchive{pool: Pool}
}

// ArchivedInvoice is one stored invoice row.
type ArchivedInvoice struct {
	Invoice   models.InvoiceData `json:"invoice"`
	CreatedAt time.Time          `json:"createdAt"`
}

func (a *InvoiceArchive) SaveInvoice(ctx context.Context, inv models.InvoiceData) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("serializing invoice %s: %w", inv.ID, err)
	}

	var totalKwh, amountDue any
	if inv.EnergySummary.TotalKwh != nil {
		totalKwh = *inv.EnergySummary.TotalKwh
	}
	if inv.EnergySummary.AmountDueEur != nil {
		amountDue = *inv.EnergySummary.AmountDueEur
	}

	_, err = a.pool.Exec(ctx, `
		INSERT INTO invoices (id, cups, provider, tariff, period_from, period_to, total_kwh, amount_due_eur, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
		inv.ID, inv.CUPS, inv.Provider, inv.Tariff,
		inv.BillingPeriod.From, inv.BillingPeriod.To,
		totalKwh, amountDue, data)
	if err != nil {
		return fmt.Errorf("archiving invoice %s: %w", inv.ID, err)
	}
	return nil
}

func (a *InvoiceArchive) DeleteInvoice(ctx context.Context, id string) error {
	if _, err := a.pool.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting archived invoice %s: %w", id, err)
	}
	return nil
}

// ListInvoices returns the most recent archived invoices, newest first.
func (a *InvoiceArchive) ListInvoices(ctx context.Context, limit int) ([]ArchivedInvoice, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.pool.Query(ctx, `
		SELECT data, created_at FROM invoices
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing archived invoices: %w", err)
	}
	defer rows.Close()

	var out []ArchivedInvoice
	for rows.Next() {
		var raw []byte
		var item ArchivedInvoice
		if err := rows.Scan(&raw, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning archived invoice: %w", err)
		}
		if err := json.Unmarshal(raw, &item.Invoice); err != nil {
			return nil, fmt.Errorf("decoding archived invoice: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
