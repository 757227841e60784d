package domain

import "time"

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// NormalizeLimit applies the default page size to an unset limit and clamps
// oversized requests.
func NormalizeLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, invalid("limit", "must not be negative")
	case limit == 0:
		return DefaultLimit, nil
	case limit > MaxLimit:
		return MaxLimit, nil
	}
	return limit, nil
}

// TimeWindow bounds createdAt inclusively on both ends. A nil bound is open.
type TimeWindow struct {
	StartDate *time.Time
	EndDate   *time.Time
}

func (w TimeWindow) Validate() error {
	if w.StartDate != nil && w.EndDate != nil && w.StartDate.After(*w.EndDate) {
		return invalid("startDate", "must not be after endDate")
	}
	return nil
}
