package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type Operation string

const (
	OperationInsert Operation = "INSERT"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToUpper(strings.TrimSpace(s)))
	if !op.Valid() {
		return "", invalid("operation", "unknown operation %q", s)
	}
	return op, nil
}

func (o Operation) Valid() bool {
	return o == OperationInsert || o == OperationUpdate || o == OperationDelete
}

type Classification string

const (
	ClassificationPublic       Classification = "PUBLIC"
	ClassificationInternal     Classification = "INTERNAL"
	ClassificationConfidential Classification = "CONFIDENTIAL"
	ClassificationSensitive    Classification = "SENSITIVE"
)

func ParseClassification(s string) (Classification, error) {
	c := Classification(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", invalid("dataClassification", "unknown classification %q", s)
	}
	return c, nil
}

func (c Classification) Valid() bool {
	switch c {
	case ClassificationPublic, ClassificationInternal, ClassificationConfidential, ClassificationSensitive:
		return true
	}
	return false
}

// DataChangeLog is an immutable record of a row-level mutation.
type DataChangeLog struct {
	ID                 string
	CreatedAt          time.Time
	TableName          string
	RecordID           string
	Operation          Operation
	ChangedFields      []string
	OldData            json.RawMessage
	NewData            json.RawMessage
	ChangedBy          string
	Reason             string
	DataClassification Classification

	Actor *Actor
}

// WithDefaults fills the classification when the producer left it unset.
func (d DataChangeLog) WithDefaults() DataChangeLog {
	if d.DataClassification == "" {
		d.DataClassification = ClassificationInternal
	}
	return d
}

func (d DataChangeLog) Validate() error {
	if strings.TrimSpace(d.TableName) == "" {
		return invalid("tableName", "is required")
	}
	if strings.TrimSpace(d.RecordID) == "" {
		return invalid("recordId", "is required")
	}
	if !d.Operation.Valid() {
		return invalid("operation", "unknown operation %q", d.Operation)
	}
	if d.DataClassification != "" && !d.DataClassification.Valid() {
		return invalid("dataClassification", "unknown classification %q", d.DataClassification)
	}
	for _, f := range d.ChangedFields {
		if strings.TrimSpace(f) == "" {
			return invalid("changedFields", "must not contain empty names")
		}
	}
	return nil
}

type DataChangeFilter struct {
	TableName string
	RecordID  string
	Operation Operation
	ChangedBy string
	TimeWindow
	Limit int
}

func (f DataChangeFilter) Normalize() (DataChangeFilter, error) {
	if f.Operation != "" && !f.Operation.Valid() {
		return f, invalid("operation", "unknown operation %q", f.Operation)
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
