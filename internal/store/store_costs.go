package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AddCostEntry appends one row to the cost ledger.
func (s *Store) AddCostEntry(ctx context.Context, entry *CostEntry) error {
	ctx = ensureContext(ctx)
	if entry == nil {
		return errors.New("add cost entry: nil entry")
	}
	entry.CreatedAt = time.Now().UTC()
	res, err := s.execWithRetry(ctx, `
		INSERT INTO cost_entries (
			output_id, resource, provider, model, units, amount_usd, metadata_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.OutputID, entry.Resource, entry.Provider, entry.Model,
		entry.Units, entry.AmountUSD, nullableString(entry.MetadataJSON),
		timestamp(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("add cost entry: %w", err)
	}
	if entry.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("add cost entry: %w", err)
	}
	return nil
}

// ListCostEntries returns an output's ledger rows oldest first.
func (s *Store) ListCostEntries(ctx context.Context, outputID string) ([]*CostEntry, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, output_id, resource, provider, model, units, amount_usd, metadata_json, created_at
		FROM cost_entries WHERE output_id = ? ORDER BY id`, outputID)
	if err != nil {
		return nil, fmt.Errorf("list cost entries: %w", err)
	}
	defer rows.Close()

	var entries []*CostEntry
	for rows.Next() {
		var (
			entry        CostEntry
			metadataJSON sql.NullString
			createdAt    string
		)
		if err := rows.Scan(&entry.ID, &entry.OutputID, &entry.Resource,
			&entry.Provider, &entry.Model, &entry.Units, &entry.AmountUSD,
			&metadataJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan cost entry: %w", err)
		}
		entry.MetadataJSON = metadataJSON.String
		if entry.CreatedAt, err = parseTimeString(createdAt); err != nil {
			return nil, fmt.Errorf("scan cost entry: created_at: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// CostTotal sums an output's spend in USD.
func (s *Store) CostTotal(ctx context.Context, outputID string) (float64, error) {
	ctx = ensureContext(ctx)
	var total sql.NullFloat64
	row := s.db.QueryRowContext(ctx,
		"SELECT SUM(amount_usd) FROM cost_entries WHERE output_id = ?", outputID)
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("cost total: %w", err)
	}
	return total.Float64, nil
}

// CostTotalsByResource breaks an output's spend down per resource type.
func (s *Store) CostTotalsByResource(ctx context.Context, outputID string) (map[string]float64, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `
		SELECT resource, SUM(amount_usd) FROM cost_entries
		WHERE output_id = ? GROUP BY resource`, outputID)
	if err != nil {
		return nil, fmt.Errorf("cost totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]float64)
	for rows.Next() {
		var (
			resource string
			amount   float64
		)
		if err := rows.Scan(&resource, &amount); err != nil {
			return nil, fmt.Errorf("scan cost total: %w", err)
		}
		totals[resource] = amount
	}
	return totals, rows.Err()
}
