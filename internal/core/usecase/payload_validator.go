package usecase

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const (
	schemaMetadata = "metadata"
	schemaSnapshot = "snapshot"

	// Mirrors maxProperties and propertyNames in metadata.schema.json.
	maxMetadataKeys      = 64
	maxMetadataKeyLength = 128
)

// PayloadValidator checks the opaque JSON payloads carried by log entries
// against embedded Draft-7 schemas.
type PayloadValidator struct {
	schemas map[string]*santhosh.Schema
}

func NewPayloadValidator() (*PayloadValidator, error) {
	v := &PayloadValidator{schemas: map[string]*santhosh.Schema{}}
	for _, name := range []string{schemaMetadata, schemaSnapshot} {
		raw, err := schemaFS.ReadFile("schemas/" + name + ".schema.json")
		if err != nil {
			return nil, fmt.Errorf("read %s schema: %w", name, err)
		}
		compiled, err := compileSchema(name, raw)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", name, err)
		}
		v.schemas[name] = compiled
	}
	return v, nil
}

func (v *PayloadValidator) ActionLog(l domain.ActionLog) error {
	return v.check(
		field{"metadata", schemaMetadata, l.Metadata},
		field{"oldValues", schemaSnapshot, l.OldValues},
		field{"newValues", schemaSnapshot, l.NewValues},
	)
}

func (v *PayloadValidator) SystemEvent(e domain.SystemEvent) error {
	return v.check(field{"metadata", schemaMetadata, e.Metadata})
}

func (v *PayloadValidator) DataChangeLog(d domain.DataChangeLog) error {
	return v.check(
		field{"oldData", schemaSnapshot, d.OldData},
		field{"newData", schemaSnapshot, d.NewData},
	)
}

type field struct {
	name   string
	schema string
	data   json.RawMessage
}

func (v *PayloadValidator) check(fields ...field) error {
	for _, f := range fields {
		if len(f.data) == 0 || string(f.data) == "null" {
			continue
		}
		if err := runValidation(v.schemas[f.schema], f.data); err != nil {
			return &domain.ValidationError{Field: f.name, Message: err.Error()}
		}
	}
	return nil
}

func compileSchema(name string, schemaJSON []byte) (*santhosh.Schema, error) {
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	url := name + ".schema.json"
	if err := compiler.AddResource(url, bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

func runValidation(sch *santhosh.Schema, data json.RawMessage) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("not valid json: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		var ve *santhosh.ValidationError
		if errors.As(err, &ve) {
			return errors.New(strings.Join(collectValidationErrors(ve), "; "))
		}
		return err
	}
	return nil
}

func collectValidationErrors(ve *santhosh.ValidationError) []string {
	var msgs []string
	for _, cause := range ve.Causes {
		msgs = append(msgs, collectValidationErrors(cause)...)
	}
	if len(ve.Causes) == 0 {
		msgs = append(msgs, ve.Message)
	}
	return msgs
}
