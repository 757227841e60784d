package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/atvirokodosprendimai/auditlog/internal/adapters/gormstore/gormdb"
	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
	"gorm.io/gorm"
)

func (s *Store) WriteSystemEvent(ctx context.Context, event domain.SystemEvent) (domain.SystemEvent, error) {
	event.ID = newID()
	event.CreatedAt = s.now()
	if !event.IsResolved {
		event.ResolvedAt = nil
		event.ResolvedBy = ""
		event.Resolution = ""
	}
	model := toSystemEventModel(event)

	err := s.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("insert system event: %w", err)
		}
		return enqueueSystemEvent(tx.DB, domain.EventSystemEventCreated, model.toDomain(), "")
	})
	if err != nil {
		return domain.SystemEvent{}, err
	}
	return model.toDomain(), nil
}

func (s *Store) FindSystemEvents(ctx context.Context, filter domain.SystemEventFilter) ([]domain.SystemEvent, error) {
	var rows []systemEventModel
	err := s.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
		query := tx.Model(&systemEventModel{})
		if filter.EventType != "" {
			query = query.Where("event_type = ?", string(filter.EventType))
		}
		if filter.Severity != "" {
			query = query.Where("severity = ?", string(filter.Severity))
		}
		if filter.Component != "" {
			query = query.Where("component = ?", filter.Component)
		}
		if filter.IsResolved != nil {
			query = query.Where("is_resolved = ?", *filter.IsResolved)
		}
		query = applyWindow(query, filter.TimeWindow)
		return newestFirst(query).Limit(filter.Limit).Find(&rows).Error
	})
	if err != nil {
		return nil, wrap("list system events", err)
	}

	result := make([]domain.SystemEvent, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

// ResolveSystemEvent performs the Open -> Resolved transition as one
// conditional update, so concurrent resolvers cannot both succeed.
func (s *Store) ResolveSystemEvent(ctx context.Context, res domain.Resolution) (domain.SystemEvent, error) {
	now := s.now()
	var resolved systemEventModel

	err := s.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		update := tx.Model(&systemEventModel{}).
			Where("id = ? AND is_resolved = ?", res.EventID, false).
			Updates(map[string]any{
				"is_resolved": true,
				"resolved_at": now,
				"resolved_by": res.ResolvedBy,
				"resolution":  res.Resolution,
			})
		if update.Error != nil {
			return fmt.Errorf("resolve system event: %w", update.Error)
		}

		if err := tx.Where("id = ?", res.EventID).First(&resolved).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("load system event: %w", err)
		}
		if update.RowsAffected == 0 {
			return domain.ErrAlreadyResolved
		}

		return enqueueSystemEvent(tx.DB, domain.EventSystemEventResolved, resolved.toDomain(), res.ResolvedBy)
	})
	if err != nil {
		return domain.SystemEvent{}, err
	}
	return resolved.toDomain(), nil
}

func enqueueSystemEvent(tx *gorm.DB, eventType string, event domain.SystemEvent, actor string) error {
	envelope := domain.EventEnvelope{
		EventID:       newID(),
		EventType:     eventType,
		SchemaVersion: domain.CurrentEventSchemaVersion,
		AggregateType: "system_event",
		AggregateID:   event.ID,
		Severity:      event.Severity,
		OccurredAt:    event.CreatedAt,
		Actor:         actor,
		Payload:       mustJSON(systemEventPayload(event)),
	}
	if event.ResolvedAt != nil {
		envelope.OccurredAt = *event.ResolvedAt
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	outbox := outboxEventModel{
		EventID:       envelope.EventID,
		Topic:         envelope.Topic(),
		PayloadJSON:   string(payload),
		Status:        "pending",
		NextAttemptAt: envelope.OccurredAt,
		CreatedAt:     envelope.OccurredAt,
	}
	if err := tx.Create(&outbox).Error; err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func systemEventPayload(e domain.SystemEvent) map[string]any {
	payload := map[string]any{
		"id":          e.ID,
		"event_type":  e.EventType,
		"severity":    e.Severity,
		"title":       e.Title,
		"description": e.Description,
		"component":   e.Component,
		"error_code":  e.ErrorCode,
		"is_resolved": e.IsResolved,
		"created_at":  e.CreatedAt,
	}
	if e.IsResolved {
		payload["resolved_at"] = e.ResolvedAt
		payload["resolved_by"] = e.ResolvedBy
		payload["resolution"] = e.Resolution
	}
	return payload
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
