package usecase

import (
	"time"

	"github.com/atvirokodosprendimai/auditlog/internal/core/ports"
)

type NopMetrics struct{}

var _ ports.Metrics = NopMetrics{}

func (NopMetrics) ObserveWrite(string)                    {}
func (NopMetrics) ObserveDenied(string)                   {}
func (NopMetrics) ObserveResolve(string)                  {}
func (NopMetrics) ObserveCleanup(int64, time.Time, error) {}
func (NopMetrics) ObserveOutboxDispatch(string)           {}
