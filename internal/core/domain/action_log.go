package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type Action string

const (
	ActionUserLogin                   Action = "USER_LOGIN"
	ActionUserLogout                  Action = "USER_LOGOUT"
	ActionUserRegister                Action = "USER_REGISTER"
	ActionUserUpdateProfile           Action = "USER_UPDATE_PROFILE"
	ActionUserDelete                  Action = "USER_DELETE"
	ActionUserPasswordChange          Action = "USER_PASSWORD_CHANGE"
	ActionTherapistApplicationSubmit  Action = "THERAPIST_APPLICATION_SUBMIT"
	ActionTherapistApplicationApprove Action = "THERAPIST_APPLICATION_APPROVE"
	ActionTherapistApplicationReject  Action = "THERAPIST_APPLICATION_REJECT"
	ActionMeetingCreate               Action = "MEETING_CREATE"
	ActionMeetingUpdate               Action = "MEETING_UPDATE"
	ActionMeetingCancel               Action = "MEETING_CANCEL"
	ActionMeetingComplete             Action = "MEETING_COMPLETE"
	ActionWorksheetCreate             Action = "WORKSHEET_CREATE"
	ActionWorksheetSubmit             Action = "WORKSHEET_SUBMIT"
	ActionPaymentCreate               Action = "PAYMENT_CREATE"
	ActionPaymentRefund               Action = "PAYMENT_REFUND"
	ActionAdminUserSuspend            Action = "ADMIN_USER_SUSPEND"
	ActionAdminUserActivate           Action = "ADMIN_USER_ACTIVATE"
	ActionAdminContentModerate        Action = "ADMIN_CONTENT_MODERATE"
	ActionDataExport                  Action = "DATA_EXPORT"
)

var knownActions = map[Action]struct{}{
	ActionUserLogin:                   {},
	ActionUserLogout:                  {},
	ActionUserRegister:                {},
	ActionUserUpdateProfile:           {},
	ActionUserDelete:                  {},
	ActionUserPasswordChange:          {},
	ActionTherapistApplicationSubmit:  {},
	ActionTherapistApplicationApprove: {},
	ActionTherapistApplicationReject:  {},
	ActionMeetingCreate:               {},
	ActionMeetingUpdate:               {},
	ActionMeetingCancel:               {},
	ActionMeetingComplete:             {},
	ActionWorksheetCreate:             {},
	ActionWorksheetSubmit:             {},
	ActionPaymentCreate:               {},
	ActionPaymentRefund:               {},
	ActionAdminUserSuspend:            {},
	ActionAdminUserActivate:           {},
	ActionAdminContentModerate:        {},
	ActionDataExport:                  {},
}

func ParseAction(s string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", invalid("action", "unknown action %q", s)
	}
	return a, nil
}

func (a Action) Valid() bool {
	_, ok := knownActions[a]
	return ok
}

// ActionLog is an immutable record of one user- or system-initiated action.
// Empty optional strings are stored as NULL.
type ActionLog struct {
	ID          string
	CreatedAt   time.Time
	Action      Action
	Entity      string
	EntityID    string
	ActorID     string
	ActorRole   Role
	OldValues   json.RawMessage
	NewValues   json.RawMessage
	Description string
	Metadata    json.RawMessage
	IPAddress   string
	UserAgent   string
	RequestID   string

	// Actor is populated on read when ActorID resolves to a known user.
	Actor *Actor
}

func (l ActionLog) Validate() error {
	if !l.Action.Valid() {
		return invalid("action", "unknown action %q", l.Action)
	}
	if strings.TrimSpace(l.Entity) == "" {
		return invalid("entity", "is required")
	}
	if strings.TrimSpace(l.EntityID) == "" {
		return invalid("entityId", "is required")
	}
	if l.ActorRole != "" && !l.ActorRole.Valid() {
		return invalid("actorRole", "unknown role %q", l.ActorRole)
	}
	return nil
}

type ActionLogFilter struct {
	ActorID  string
	Action   Action
	Entity   string
	EntityID string
	TimeWindow
	Limit int
}

func (f ActionLogFilter) Normalize() (ActionLogFilter, error) {
	if f.Action != "" && !f.Action.Valid() {
		return f, invalid("action", "unknown action %q", f.Action)
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
