package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dshills/tripdesk-mcp/pkg/types"
)

// The embedded document is addressed with SQLite's JSON1 functions. Writes
// touch only the paths they own so a client update never clobbers the plan
// and vice versa. Documents below the current version fall back to a
// decode-modify-encode cycle, which also upgrades them.

// ReadDocument decodes a trip's embedded document
func (s *SQLiteStorage) ReadDocument(ctx context.Context, tripID int64) (*types.TripDocument, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM trips WHERE id = ?`, tripID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read trip document: %w", err)
	}
	doc, err := types.DecodeTripDocument([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("trip %d: %w", tripID, err)
	}
	return doc, nil
}

// ReadClients returns the embedded client list of a trip
func (s *SQLiteStorage) ReadClients(ctx context.Context, tripID int64) ([]types.ClientAssignment, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(json_extract(data, '$.clients'), '[]')
		FROM trips
		WHERE id = ? AND COALESCE(json_extract(data, '$.schema_version'), 1) >= ?
	`, tripID, types.CurrentDocumentVersion).Scan(&raw)
	if err == sql.ErrNoRows {
		// Missing trip or legacy layout
		doc, err := s.ReadDocument(ctx, tripID)
		if err != nil {
			return nil, err
		}
		return doc.Clients, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded clients: %w", err)
	}

	clients := make([]types.ClientAssignment, 0)
	if err := json.Unmarshal([]byte(raw), &clients); err != nil {
		return nil, fmt.Errorf("trip %d: invalid embedded clients: %w", tripID, err)
	}
	return clients, nil
}

// WriteClients replaces the embedded client list of a trip
func (s *SQLiteStorage) WriteClients(ctx context.Context, tripID int64, clients []types.ClientAssignment) error {
	if clients == nil {
		clients = []types.ClientAssignment{}
	}
	check := types.TripDocument{Clients: clients}
	if err := check.Validate(); err != nil {
		return err
	}
	encoded, err := json.Marshal(clients)
	if err != nil {
		return fmt.Errorf("failed to encode clients: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE trips
		SET data = json_set(data, '$.clients', json(?)), updated_at = ?
		WHERE id = ? AND COALESCE(json_extract(data, '$.schema_version'), 1) >= ?
	`, string(encoded), time.Now(), tripID, types.CurrentDocumentVersion)
	if err != nil {
		return fmt.Errorf("failed to write embedded clients: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil || n > 0 {
		return err
	}

	return s.rewriteDocument(ctx, tripID, func(doc *types.TripDocument) {
		doc.Clients = clients
	})
}

// WritePlan replaces the financials, schedule and accommodations of a trip
// while leaving the embedded client list untouched
func (s *SQLiteStorage) WritePlan(ctx context.Context, tripID int64, plan *types.TripDocument) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	financials, err := json.Marshal(plan.Financials)
	if err != nil {
		return err
	}
	schedule, err := json.Marshal(nonNil(plan.Schedule))
	if err != nil {
		return err
	}
	accommodations, err := json.Marshal(nonNil(plan.Accommodations))
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE trips
		SET data = json_set(data,
				'$.financials', json(?),
				'$.schedule', json(?),
				'$.accommodations', json(?)),
			updated_at = ?
		WHERE id = ? AND COALESCE(json_extract(data, '$.schema_version'), 1) >= ?
	`, string(financials), string(schedule), string(accommodations), time.Now(), tripID, types.CurrentDocumentVersion)
	if err != nil {
		return fmt.Errorf("failed to write trip plan: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil || n > 0 {
		return err
	}

	return s.rewriteDocument(ctx, tripID, func(doc *types.TripDocument) {
		doc.Financials = plan.Financials
		doc.Schedule = plan.Schedule
		doc.Accommodations = plan.Accommodations
	})
}

// rewriteDocument decodes, mutates and stores the whole document
func (s *SQLiteStorage) rewriteDocument(ctx context.Context, tripID int64, mutate func(doc *types.TripDocument)) error {
	doc, err := s.ReadDocument(ctx, tripID)
	if err != nil {
		return err
	}
	mutate(doc)
	encoded, err := doc.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode trip document: %w", err)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE trips SET data = ?, updated_at = ? WHERE id = ?`, string(encoded), time.Now(), tripID)
	if err != nil {
		return fmt.Errorf("failed to write trip document: %w", err)
	}
	return expectAffected(result)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
