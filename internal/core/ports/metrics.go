package ports

import "time"

type Metrics interface {
	ObserveWrite(kind string)
	ObserveDenied(operation string)
	ObserveResolve(result string)
	ObserveCleanup(deleted int64, ranAt time.Time, err error)
	ObserveOutboxDispatch(result string)
}
