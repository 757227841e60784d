package usecase

import (
	"context"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
)

func (s *AuditService) GetStatistics(ctx context.Context, caller domain.Caller, window domain.TimeWindow) (domain.Statistics, error) {
	if err := s.require(ctx, caller, domain.ObjStatistics, domain.ActRead); err != nil {
		return domain.Statistics{}, err
	}
	if err := window.Validate(); err != nil {
		return domain.Statistics{}, err
	}
	return s.store.ActionLogStatistics(ctx, window)
}
