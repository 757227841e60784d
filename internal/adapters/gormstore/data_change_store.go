package gormstore

import (
	"context"

	"github.com/atvirokodosprendimai/auditlog/internal/adapters/gormstore/gormdb"
	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
)

func (s *Store) WriteDataChangeLog(ctx context.Context, entry domain.DataChangeLog) (domain.DataChangeLog, error) {
	entry = entry.WithDefaults()
	entry.ID = newID()
	entry.CreatedAt = s.now()
	model := toDataChangeLogModel(entry)

	err := s.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		return tx.Create(&model).Error
	})
	if err != nil {
		return domain.DataChangeLog{}, wrap("insert data change log", err)
	}

	written := []domain.DataChangeLog{model.toDomain()}
	if err := s.users.enrichDataChangeLogs(ctx, written); err != nil {
		s.log.WithError(err).WithField("id", entry.ID).Warn("enrich written data change log")
		written[0].Actor = nil
	}
	return written[0], nil
}

func (s *Store) FindDataChangeLogs(ctx context.Context, filter domain.DataChangeFilter) ([]domain.DataChangeLog, error) {
	var rows []dataChangeLogModel
	err := s.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
		query := tx.Model(&dataChangeLogModel{})
		if filter.TableName != "" {
			query = query.Where("table_name = ?", filter.TableName)
		}
		if filter.RecordID != "" {
			query = query.Where("record_id = ?", filter.RecordID)
		}
		if filter.Operation != "" {
			query = query.Where("operation = ?", string(filter.Operation))
		}
		if filter.ChangedBy != "" {
			query = query.Where("changed_by = ?", filter.ChangedBy)
		}
		query = applyWindow(query, filter.TimeWindow)
		return newestFirst(query).Limit(filter.Limit).Find(&rows).Error
	})
	if err != nil {
		return nil, wrap("list data change logs", err)
	}

	result := make([]domain.DataChangeLog, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	if err := s.users.enrichDataChangeLogs(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}
