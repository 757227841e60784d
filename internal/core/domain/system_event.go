package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type SystemEventType string

const (
	EventThirdPartyAPIError  SystemEventType = "THIRD_PARTY_API_ERROR"
	EventServiceStart        SystemEventType = "SERVICE_START"
	EventServiceStop         SystemEventType = "SERVICE_STOP"
	EventDatabaseError       SystemEventType = "DATABASE_ERROR"
	EventSecurityAlert       SystemEventType = "SECURITY_ALERT"
	EventPerformanceIssue    SystemEventType = "PERFORMANCE_ISSUE"
	EventMaintenance         SystemEventType = "MAINTENANCE"
	EventConfigurationChange SystemEventType = "CONFIGURATION_CHANGE"
)

func ParseSystemEventType(s string) (SystemEventType, error) {
	t := SystemEventType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", invalid("eventType", "unknown event type %q", s)
	}
	return t, nil
}

func (t SystemEventType) Valid() bool {
	switch t {
	case EventThirdPartyAPIError, EventServiceStart, EventServiceStop, EventDatabaseError,
		EventSecurityAlert, EventPerformanceIssue, EventMaintenance, EventConfigurationChange:
		return true
	}
	return false
}

type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if sev.Rank() == 0 {
		return "", invalid("severity", "unknown severity %q", s)
	}
	return sev, nil
}

// Rank orders severities from 1 (INFO) to 4 (CRITICAL). Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityError:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

func (s Severity) Valid() bool { return s.Rank() > 0 }

// SystemEvent is an operational condition with a resolve-once lifecycle.
type SystemEvent struct {
	ID          string
	CreatedAt   time.Time
	EventType   SystemEventType
	Severity    Severity
	Title       string
	Description string
	Component   string
	Metadata    json.RawMessage
	ErrorCode   string
	StackTrace  string

	IsResolved bool
	ResolvedAt *time.Time
	ResolvedBy string
	Resolution string
}

func (e SystemEvent) Validate() error {
	if !e.EventType.Valid() {
		return invalid("eventType", "unknown event type %q", e.EventType)
	}
	if !e.Severity.Valid() {
		return invalid("severity", "unknown severity %q", e.Severity)
	}
	if strings.TrimSpace(e.Title) == "" {
		return invalid("title", "is required")
	}
	if strings.TrimSpace(e.Description) == "" {
		return invalid("description", "is required")
	}
	return nil
}

// ResolutionConsistent reports whether the resolution fields agree with IsResolved:
// all set when resolved, all unset otherwise.
func (e SystemEvent) ResolutionConsistent() bool {
	set := 0
	if e.ResolvedAt != nil {
		set++
	}
	if e.ResolvedBy != "" {
		set++
	}
	if e.Resolution != "" {
		set++
	}
	if e.IsResolved {
		return set == 3
	}
	return set == 0
}

type SystemEventFilter struct {
	EventType  SystemEventType
	Severity   Severity
	Component  string
	IsResolved *bool
	TimeWindow
	Limit int
}

func (f SystemEventFilter) Normalize() (SystemEventFilter, error) {
	if f.EventType != "" && !f.EventType.Valid() {
		return f, invalid("eventType", "unknown event type %q", f.EventType)
	}
	if f.Severity != "" && !f.Severity.Valid() {
		return f, invalid("severity", "unknown severity %q", f.Severity)
	}
	if err := f.TimeWindow.Validate(); err != nil {
		return f, err
	}
	limit, err := NormalizeLimit(f.Limit)
	if err != nil {
		return f, err
	}
	f.Limit = limit
	return f, nil
}

// Resolution is the input of the Open -> Resolved transition.
type Resolution struct {
	EventID    string
	ResolvedBy string
	Resolution string
}

func (r Resolution) Validate() error {
	if strings.TrimSpace(r.EventID) == "" {
		return invalid("id", "is required")
	}
	if strings.TrimSpace(r.ResolvedBy) == "" {
		return invalid("resolvedBy", "is required")
	}
	if strings.TrimSpace(r.Resolution) == "" {
		return invalid("resolution", "is required")
	}
	return nil
}
