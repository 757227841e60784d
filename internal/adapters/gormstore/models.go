package gormstore

import (
	"encoding/json"
	"time"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
	"gorm.io/datatypes"
)

type actionLogModel struct {
	Seq         int64          `gorm:"column:seq;primaryKey;autoIncrement"`
	ID          string         `gorm:"column:id;not null"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null"`
	Action      string         `gorm:"column:action;not null"`
	Entity      string         `gorm:"column:entity;not null"`
	EntityID    string         `gorm:"column:entity_id;not null"`
	ActorID     *string        `gorm:"column:actor_id"`
	ActorRole   *string        `gorm:"column:actor_role"`
	OldValues   datatypes.JSON `gorm:"column:old_values"`
	NewValues   datatypes.JSON `gorm:"column:new_values"`
	Description *string        `gorm:"column:description"`
	Metadata    datatypes.JSON `gorm:"column:metadata"`
	IPAddress   *string        `gorm:"column:ip_address"`
	UserAgent   *string        `gorm:"column:user_agent"`
	RequestID   *string        `gorm:"column:request_id"`
}

func (actionLogModel) TableName() string {
	return "action_logs"
}

type systemEventModel struct {
	Seq         int64          `gorm:"column:seq;primaryKey;autoIncrement"`
	ID          string         `gorm:"column:id;not null"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null"`
	EventType   string         `gorm:"column:event_type;not null"`
	Severity    string         `gorm:"column:severity;not null"`
	Title       string         `gorm:"column:title;not null"`
	Description string         `gorm:"column:description;not null"`
	Component   *string        `gorm:"column:component"`
	Metadata    datatypes.JSON `gorm:"column:metadata"`
	ErrorCode   *string        `gorm:"column:error_code"`
	StackTrace  *string        `gorm:"column:stack_trace"`
	IsResolved  bool           `gorm:"column:is_resolved;not null"`
	ResolvedAt  *time.Time     `gorm:"column:resolved_at"`
	ResolvedBy  *string        `gorm:"column:resolved_by"`
	Resolution  *string        `gorm:"column:resolution"`
}

func (systemEventModel) TableName() string {
	return "system_events"
}

type dataChangeLogModel struct {
	Seq                int64                       `gorm:"column:seq;primaryKey;autoIncrement"`
	ID                 string                      `gorm:"column:id;not null"`
	CreatedAt          time.Time                   `gorm:"column:created_at;not null"`
	Table              string                      `gorm:"column:table_name;not null"`
	RecordID           string                      `gorm:"column:record_id;not null"`
	Operation          string                      `gorm:"column:operation;not null"`
	ChangedFields      datatypes.JSONSlice[string] `gorm:"column:changed_fields"`
	OldData            datatypes.JSON              `gorm:"column:old_data"`
	NewData            datatypes.JSON              `gorm:"column:new_data"`
	ChangedBy          *string                     `gorm:"column:changed_by"`
	Reason             *string                     `gorm:"column:reason"`
	DataClassification string                      `gorm:"column:data_classification;not null"`
}

func (dataChangeLogModel) TableName() string {
	return "data_change_logs"
}

type outboxEventModel struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	EventID       string     `gorm:"column:event_id;not null"`
	Topic         string     `gorm:"column:topic;not null"`
	PayloadJSON   string     `gorm:"column:payload_json;not null"`
	Status        string     `gorm:"column:status;not null"`
	Attempts      int        `gorm:"column:attempts;not null"`
	NextAttemptAt time.Time  `gorm:"column:next_attempt_at;not null"`
	LastError     string     `gorm:"column:last_error;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
	DispatchedAt  *time.Time `gorm:"column:dispatched_at"`
}

func (outboxEventModel) TableName() string {
	return "outbox_events"
}

type userModel struct {
	ID    string `gorm:"column:id;primaryKey"`
	Name  string `gorm:"column:name"`
	Email string `gorm:"column:email"`
	Role  string `gorm:"column:role"`
}

func (userModel) TableName() string {
	return "users"
}

func toActionLogModel(l domain.ActionLog) actionLogModel {
	return actionLogModel{
		ID:          l.ID,
		CreatedAt:   l.CreatedAt,
		Action:      string(l.Action),
		Entity:      l.Entity,
		EntityID:    l.EntityID,
		ActorID:     nullable(l.ActorID),
		ActorRole:   nullable(string(l.ActorRole)),
		OldValues:   jsonColumn(l.OldValues),
		NewValues:   jsonColumn(l.NewValues),
		Description: nullable(l.Description),
		Metadata:    jsonColumn(l.Metadata),
		IPAddress:   nullable(l.IPAddress),
		UserAgent:   nullable(l.UserAgent),
		RequestID:   nullable(l.RequestID),
	}
}

func (m actionLogModel) toDomain() domain.ActionLog {
	return domain.ActionLog{
		ID:          m.ID,
		CreatedAt:   m.CreatedAt.UTC(),
		Action:      domain.Action(m.Action),
		Entity:      m.Entity,
		EntityID:    m.EntityID,
		ActorID:     deref(m.ActorID),
		ActorRole:   domain.Role(deref(m.ActorRole)),
		OldValues:   rawJSON(m.OldValues),
		NewValues:   rawJSON(m.NewValues),
		Description: deref(m.Description),
		Metadata:    rawJSON(m.Metadata),
		IPAddress:   deref(m.IPAddress),
		UserAgent:   deref(m.UserAgent),
		RequestID:   deref(m.RequestID),
	}
}

func toSystemEventModel(e domain.SystemEvent) systemEventModel {
	return systemEventModel{
		ID:          e.ID,
		CreatedAt:   e.CreatedAt,
		EventType:   string(e.EventType),
		Severity:    string(e.Severity),
		Title:       e.Title,
		Description: e.Description,
		Component:   nullable(e.Component),
		Metadata:    jsonColumn(e.Metadata),
		ErrorCode:   nullable(e.ErrorCode),
		StackTrace:  nullable(e.StackTrace),
		IsResolved:  e.IsResolved,
		ResolvedAt:  e.ResolvedAt,
		ResolvedBy:  nullable(e.ResolvedBy),
		Resolution:  nullable(e.Resolution),
	}
}

func (m systemEventModel) toDomain() domain.SystemEvent {
	var resolvedAt *time.Time
	if m.ResolvedAt != nil {
		t := m.ResolvedAt.UTC()
		resolvedAt = &t
	}
	return domain.SystemEvent{
		ID:          m.ID,
		CreatedAt:   m.CreatedAt.UTC(),
		EventType:   domain.SystemEventType(m.EventType),
		Severity:    domain.Severity(m.Severity),
		Title:       m.Title,
		Description: m.Description,
		Component:   deref(m.Component),
		Metadata:    rawJSON(m.Metadata),
		ErrorCode:   deref(m.ErrorCode),
		StackTrace:  deref(m.StackTrace),
		IsResolved:  m.IsResolved,
		ResolvedAt:  resolvedAt,
		ResolvedBy:  deref(m.ResolvedBy),
		Resolution:  deref(m.Resolution),
	}
}

func toDataChangeLogModel(d domain.DataChangeLog) dataChangeLogModel {
	return dataChangeLogModel{
		ID:                 d.ID,
		CreatedAt:          d.CreatedAt,
		Table:              d.TableName,
		RecordID:           d.RecordID,
		Operation:          string(d.Operation),
		ChangedFields:      datatypes.JSONSlice[string](d.ChangedFields),
		OldData:            jsonColumn(d.OldData),
		NewData:            jsonColumn(d.NewData),
		ChangedBy:          nullable(d.ChangedBy),
		Reason:             nullable(d.Reason),
		DataClassification: string(d.DataClassification),
	}
}

func (m dataChangeLogModel) toDomain() domain.DataChangeLog {
	var fields []string
	if len(m.ChangedFields) > 0 {
		fields = []string(m.ChangedFields)
	}
	return domain.DataChangeLog{
		ID:                 m.ID,
		CreatedAt:          m.CreatedAt.UTC(),
		TableName:          m.Table,
		RecordID:           m.RecordID,
		Operation:          domain.Operation(m.Operation),
		ChangedFields:      fields,
		OldData:            rawJSON(m.OldData),
		NewData:            rawJSON(m.NewData),
		ChangedBy:          deref(m.ChangedBy),
		Reason:             deref(m.Reason),
		DataClassification: domain.Classification(m.DataClassification),
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func jsonColumn(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return datatypes.JSON(raw)
}

func rawJSON(j datatypes.JSON) json.RawMessage {
	if len(j) == 0 || string(j) == "null" {
		return nil
	}
	return json.RawMessage(j)
}
