package gormstore

import (
	"context"

	"github.com/atvirokodosprendimai/auditlog/internal/adapters/gormstore/gormdb"
	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
)

func (s *Store) WriteActionLog(ctx context.Context, entry domain.ActionLog) (domain.ActionLog, error) {
	entry.ID = newID()
	entry.CreatedAt = s.now()
	model := toActionLogModel(entry)

	err := s.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		return domain.ActionLog{}, wrap("insert action log", err)
	}

	// The row is committed; a failed lookup only leaves the actor absent.
	written := []domain.ActionLog{model.toDomain()}
	if err := s.users.enrichActionLogs(ctx, written); err != nil {
		s.log.WithError(err).WithField("id", entry.ID).Warn("enrich written action log")
		written[0].Actor = nil
	}
	return written[0], nil
}

func (s *Store) FindActionLogs(ctx context.Context, filter domain.ActionLogFilter) ([]domain.ActionLog, error) {
	var rows []actionLogModel
	err := s.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
		query := tx.Model(&actionLogModel{})
		if filter.ActorID != "" {
			query = query.Where("actor_id = ?", filter.ActorID)
		}
		if filter.Action != "" {
			query = query.Where("action = ?", string(filter.Action))
		}
		if filter.Entity != "" {
			query = query.Where("entity = ?", filter.Entity)
		}
		if filter.EntityID != "" {
			query = query.Where("entity_id = ?", filter.EntityID)
		}
		query = applyWindow(query, filter.TimeWindow)
		return newestFirst(query).Limit(filter.Limit).Find(&rows).Error
	})
	if err != nil {
		return nil, wrap("list action logs", err)
	}

	result := make([]domain.ActionLog, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	if err := s.users.enrichActionLogs(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}
