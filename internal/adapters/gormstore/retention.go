package gormstore

import (
	"context"
	"time"

	"github.com/atvirokodosprendimai/auditlog/internal/adapters/gormstore/gormdb"
)

// DeleteActionLogsBefore removes action logs created strictly before cutoff.
// It is the only deletion path for action logs.
func (s *Store) DeleteActionLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := s.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		res := tx.Where("created_at < ?", cutoff.UTC()).Delete(&actionLogModel{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, wrap("delete expired action logs", err)
	}
	return deleted, nil
}
