package gormstore

import (
	"context"

	"github.com/atvirokodosprendimai/auditlog/internal/adapters/gormstore/gormdb"
	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
)

type statisticsRow struct {
	Action  string
	Entity  string
	ActorID *string
	Count   int64
}

// ActionLogStatistics runs a single grouped query over the window and folds it
// into the total, per-action, per-entity and top-actor views.
func (s *Store) ActionLogStatistics(ctx context.Context, window domain.TimeWindow) (domain.Statistics, error) {
	var rows []statisticsRow
	err := s.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
		query := tx.Model(&actionLogModel{}).
			Select("action, entity, actor_id, COUNT(*) AS count")
		query = applyWindow(query, window)
		return query.Group("action, entity, actor_id").Scan(&rows).Error
	})
	if err != nil {
		return domain.Statistics{}, wrap("aggregate action logs", err)
	}

	grouped := make([]domain.StatisticsRow, 0, len(rows))
	for _, row := range rows {
		grouped = append(grouped, domain.StatisticsRow{
			Action:  domain.Action(row.Action),
			Entity:  row.Entity,
			ActorID: deref(row.ActorID),
			Count:   row.Count,
		})
	}

	stats := domain.FoldStatistics(grouped)
	if err := s.users.enrichTopActors(ctx, &stats); err != nil {
		return domain.Statistics{}, err
	}
	return stats, nil
}
