package gormstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/auditlog/internal/adapters/gormstore/gormdb"
	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
	"github.com/atvirokodosprendimai/auditlog/internal/platform/clock"
)

type OutboxRepository struct {
	db    *gormdb.DB
	clock clock.Clock
}

func NewOutboxRepository(db *gormdb.DB, c clock.Clock) *OutboxRepository {
	if c == nil {
		c = clock.RealClock{}
	}
	return &OutboxRepository{db: db, clock: c}
}

func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []outboxEventModel
	now := r.clock.Now().UTC()
	err := r.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
		return tx.Where("status = ? AND next_attempt_at <= ?", "pending", now).
			Order("id ASC").
			Limit(limit).
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("fetch pending outbox: %w", err)
	}

	result := make([]domain.OutboxEvent, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.OutboxEvent{
			ID:            row.ID,
			EventID:       row.EventID,
			Topic:         row.Topic,
			PayloadJSON:   json.RawMessage(row.PayloadJSON),
			Status:        row.Status,
			Attempts:      row.Attempts,
			NextAttemptAt: row.NextAttemptAt,
			LastError:     row.LastError,
			CreatedAt:     row.CreatedAt,
			DispatchedAt:  row.DispatchedAt,
		})
	}
	return result, nil
}

func (r *OutboxRepository) MarkDispatched(ctx context.Context, id int64) error {
	now := r.clock.Now().UTC()
	err := r.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		return tx.Model(&outboxEventModel{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": "dispatched", "dispatched_at": &now, "last_error": ""}).Error
	})
	if err != nil {
		return fmt.Errorf("mark outbox dispatched: %w", err)
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, attempts int, nextAttemptAt string, errMsg string) error {
	parsed, err := time.Parse(time.RFC3339Nano, nextAttemptAt)
	if err != nil {
		return fmt.Errorf("parse next attempt: %w", err)
	}
	err = r.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		return tx.Model(&outboxEventModel{}).
			Where("id = ?", id).
			Updates(map[string]any{"attempts": attempts, "next_attempt_at": parsed.UTC(), "last_error": errMsg}).Error
	})
	if err != nil {
		return fmt.Errorf("mark outbox failed: %w", err)
	}
	return nil
}

func (r *OutboxRepository) MarkDead(ctx context.Context, id int64, attempts int, errMsg string) error {
	err := r.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		return tx.Model(&outboxEventModel{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": "dead", "attempts": attempts, "last_error": errMsg}).Error
	})
	if err != nil {
		return fmt.Errorf("mark outbox dead: %w", err)
	}
	return nil
}
