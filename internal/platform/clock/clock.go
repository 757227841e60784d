package clock

import "time"

// Clock allows deterministic time behavior in tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always returns the same instant.
type Fixed time.Time

func (f Fixed) Now() time.Time {
	return time.Time(f).UTC()
}
