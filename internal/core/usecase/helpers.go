package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
)

const (
	entityUser                 = "User"
	entityTherapistApplication = "TherapistApplication"
	entityMeeting              = "Meeting"
)

// RequestInfo carries the optional request context recorded alongside an action.
type RequestInfo struct {
	IPAddress string
	UserAgent string
	RequestID string
}

func (s *AuditService) logOwn(ctx context.Context, caller domain.Caller, entry domain.ActionLog, req RequestInfo) (domain.ActionLog, error) {
	entry.ActorID = caller.ID
	entry.ActorRole = caller.Role
	entry.IPAddress = req.IPAddress
	entry.UserAgent = req.UserAgent
	entry.RequestID = req.RequestID
	return s.CreateActionLog(ctx, caller, entry)
}

func (s *AuditService) LogUserLogin(ctx context.Context, caller domain.Caller, req RequestInfo) (domain.ActionLog, error) {
	return s.logOwn(ctx, caller, domain.ActionLog{
		Action:      domain.ActionUserLogin,
		Entity:      entityUser,
		EntityID:    caller.ID,
		Description: "User logged in",
	}, req)
}

func (s *AuditService) LogUserLogout(ctx context.Context, caller domain.Caller, req RequestInfo) (domain.ActionLog, error) {
	return s.logOwn(ctx, caller, domain.ActionLog{
		Action:      domain.ActionUserLogout,
		Entity:      entityUser,
		EntityID:    caller.ID,
		Description: "User logged out",
	}, req)
}

func (s *AuditService) LogProfileUpdate(ctx context.Context, caller domain.Caller, oldValues, newValues any) (domain.ActionLog, error) {
	entry := domain.ActionLog{
		Action:      domain.ActionUserUpdateProfile,
		Entity:      entityUser,
		EntityID:    caller.ID,
		Description: "User profile updated",
	}
	var err error
	if entry.OldValues, err = snapshot("oldValues", oldValues); err != nil {
		return domain.ActionLog{}, err
	}
	if entry.NewValues, err = snapshot("newValues", newValues); err != nil {
		return domain.ActionLog{}, err
	}
	return s.logOwn(ctx, caller, entry, RequestInfo{})
}

func (s *AuditService) LogTherapistApplicationSubmit(ctx context.Context, caller domain.Caller, applicationID string, data any) (domain.ActionLog, error) {
	values, err := snapshot("newValues", data)
	if err != nil {
		return domain.ActionLog{}, err
	}
	return s.logOwn(ctx, caller, domain.ActionLog{
		Action:      domain.ActionTherapistApplicationSubmit,
		Entity:      entityTherapistApplication,
		EntityID:    applicationID,
		NewValues:   values,
		Description: "Therapist application submitted",
	}, RequestInfo{})
}

// LogTherapistApplicationReview records the reviewer's decision. The reviewer
// is the actor.
func (s *AuditService) LogTherapistApplicationReview(ctx context.Context, caller domain.Caller, applicationID string, approved bool, notes string) (domain.ActionLog, error) {
	action, verb := domain.ActionTherapistApplicationReject, "rejected"
	if approved {
		action, verb = domain.ActionTherapistApplicationApprove, "approved"
	}
	values, err := snapshot("newValues", map[string]any{"approved": approved, "notes": notes})
	if err != nil {
		return domain.ActionLog{}, err
	}
	return s.logOwn(ctx, caller, domain.ActionLog{
		Action:      action,
		Entity:      entityTherapistApplication,
		EntityID:    applicationID,
		NewValues:   values,
		Description: "Therapist application " + verb,
	}, RequestInfo{})
}

func (s *AuditService) LogMeetingCreate(ctx context.Context, caller domain.Caller, meetingID string, data any) (domain.ActionLog, error) {
	values, err := snapshot("newValues", data)
	if err != nil {
		return domain.ActionLog{}, err
	}
	return s.logOwn(ctx, caller, domain.ActionLog{
		Action:      domain.ActionMeetingCreate,
		Entity:      entityMeeting,
		EntityID:    meetingID,
		NewValues:   values,
		Description: "Meeting created",
	}, RequestInfo{})
}

func (s *AuditService) LogMeetingUpdate(ctx context.Context, caller domain.Caller, meetingID string, oldValues, newValues any) (domain.ActionLog, error) {
	entry := domain.ActionLog{
		Action:      domain.ActionMeetingUpdate,
		Entity:      entityMeeting,
		EntityID:    meetingID,
		Description: "Meeting updated",
	}
	var err error
	if entry.OldValues, err = snapshot("oldValues", oldValues); err != nil {
		return domain.ActionLog{}, err
	}
	if entry.NewValues, err = snapshot("newValues", newValues); err != nil {
		return domain.ActionLog{}, err
	}
	return s.logOwn(ctx, caller, entry, RequestInfo{})
}

// LogSystemError turns an arbitrary error into an ERROR system event. It is an
// internal producer and is not subject to the caller access policy. Caller
// metadata that would not fit the metadata schema next to the error fields is
// nested under "context".
func (s *AuditService) LogSystemError(ctx context.Context, component string, cause error, metadata map[string]any) (domain.SystemEvent, error) {
	message := ""
	if cause != nil {
		message = strings.TrimSpace(cause.Error())
	}
	if message == "" {
		message = "unknown error"
		if cause != nil {
			message = fmt.Sprintf("%T with empty message", cause)
		}
	}

	raw, err := systemErrorMetadata(cause, message, metadata)
	if err != nil {
		s.log.WithError(err).WithField("component", component).Warn("drop unencodable system error metadata")
		raw, _ = systemErrorMetadata(cause, message, nil)
	}

	event, err := s.writeSystemEvent(ctx, domain.SystemEvent{
		EventType:   domain.EventThirdPartyAPIError,
		Severity:    domain.SeverityError,
		Title:       "Error in " + component,
		Description: message,
		Component:   component,
		Metadata:    raw,
		StackTrace:  fmt.Sprintf("%+v\n%s", cause, debug.Stack()),
	})
	if err != nil {
		s.log.WithError(err).WithField("component", component).Error("record system error")
	}
	return event, err
}

func systemErrorMetadata(cause error, message string, metadata map[string]any) (json.RawMessage, error) {
	fields := make(map[string]any, len(metadata)+3)
	if fitsBesideErrorFields(metadata) {
		for k, v := range metadata {
			fields[k] = v
		}
	} else {
		fields["context"] = metadata
	}
	if cause != nil {
		fields["errorName"] = fmt.Sprintf("%T", cause)
	}
	fields["errorMessage"] = message
	return json.Marshal(fields)
}

func fitsBesideErrorFields(metadata map[string]any) bool {
	if len(metadata)+2 > maxMetadataKeys {
		return false
	}
	for k := range metadata {
		if k == "" || len(k) > maxMetadataKeyLength {
			return false
		}
	}
	return true
}

func snapshot(field string, v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, &domain.ValidationError{Field: field, Message: err.Error()}
	}
	return raw, nil
}
