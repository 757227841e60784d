package domain

import "time"

// Objects and acts of the access policy.
const (
	ObjActionLogs     = "action_logs"
	ObjSystemEvents   = "system_events"
	ObjDataChangeLogs = "data_change_logs"
	ObjStatistics     = "statistics"
	ObjRetention      = "retention"

	ActRead     = "read"
	ActReadOwn  = "read_own"
	ActWrite    = "write"
	ActWriteOwn = "write_own"
	ActCreate   = "create"
	ActResolve  = "resolve"
	ActCleanup  = "cleanup"
)

type CleanupResult struct {
	DeletedCount int64     `json:"deletedCount"`
	Cutoff       time.Time `json:"cutoff"`
}
