package clickhouse

import (
	"context"
	"fmt"

	"reelpay-ledger/internal/domain"
	"reelpay-ledger/internal/storage"
)

// EventStore implements storage.EventStore using ClickHouse. The journal
// is append-only; MergeTree needs no uniqueness here.
type EventStore struct {
	conn *Conn
}

// NewEventStore creates a new EventStore.
func NewEventStore(conn *Conn) *EventStore {
	return &EventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

// Insert appends one event to the journal.
func (s *EventStore) Insert(ctx context.Context, e *domain.LedgerEvent) error {
	if e == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO ledger_events (event_type, ref_id, amount, actor, mint, emitted_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		uint32(e.Type), e.RefID, e.Amount, e.Actor, e.Mint, uint64(e.EmittedAt),
	)
	if err != nil {
		return fmt.Errorf("insert ledger event: %w", err)
	}
	return nil
}

// InsertBulk appends a batch of events in one round trip.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.LedgerEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO ledger_events (event_type, ref_id, amount, actor, mint, emitted_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		if e == nil {
			return storage.ErrInvalidInput
		}
		err = batch.Append(
			uint32(e.Type), e.RefID, e.Amount, e.Actor, e.Mint, uint64(e.EmittedAt),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRefID retrieves all events for a reference ID, ordered by emission time ASC.
func (s *EventStore) GetByRefID(ctx context.Context, refID string) ([]*domain.LedgerEvent, error) {
	query := `
		SELECT event_type, ref_id, amount, actor, mint, emitted_at
		FROM ledger_events
		WHERE ref_id = ?
		ORDER BY emitted_at ASC
	`

	rows, err := s.conn.Query(ctx, query, refID)
	if err != nil {
		return nil, fmt.Errorf("get events by ref id: %w", err)
	}
	defer rows.Close()

	var events []*domain.LedgerEvent
	for rows.Next() {
		var e domain.LedgerEvent
		var eventType uint32
		var emittedAt uint64

		if err := rows.Scan(&eventType, &e.RefID, &e.Amount, &e.Actor, &e.Mint, &emittedAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		e.Type = domain.EventType(eventType)
		e.EmittedAt = int64(emittedAt)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return events, nil
}

// GetByType retrieves all events of one type, ordered by emission time ASC.
func (s *EventStore) GetByType(ctx context.Context, eventType domain.EventType) ([]*domain.LedgerEvent, error) {
	query := `
		SELECT event_type, ref_id, amount, actor, mint, emitted_at
		FROM ledger_events
		WHERE event_type = ?
		ORDER BY emitted_at ASC
	`

	rows, err := s.conn.Query(ctx, query, uint32(eventType))
	if err != nil {
		return nil, fmt.Errorf("get events by type: %w", err)
	}
	defer rows.Close()

	var events []*domain.LedgerEvent
	for rows.Next() {
		var e domain.LedgerEvent
		var et uint32
		var emittedAt uint64

		if err := rows.Scan(&et, &e.RefID, &e.Amount, &e.Actor, &e.Mint, &emittedAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		e.Type = domain.EventType(et)
		e.EmittedAt = int64(emittedAt)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return events, nil
}
