package usecase

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
)

func TestPayloadValidator(t *testing.T) {
	v, err := NewPayloadValidator()
	require.NoError(t, err)

	require.NoError(t, v.ActionLog(domain.ActionLog{
		Metadata:  json.RawMessage(`{"source":"web"}`),
		OldValues: json.RawMessage(`[{"a":1}]`),
		NewValues: json.RawMessage(`null`),
	}))
	require.NoError(t, v.SystemEvent(domain.SystemEvent{}))

	err = v.SystemEvent(domain.SystemEvent{Metadata: json.RawMessage(`"text"`)})
	require.ErrorIs(t, err, domain.ErrValidation)

	err = v.DataChangeLog(domain.DataChangeLog{NewData: json.RawMessage(`{"email":`)})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "newData", vErr.Field)

	err = v.ActionLog(domain.ActionLog{Metadata: json.RawMessage(`{bad`)})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestPayloadValidatorBoundsMetadataKeys(t *testing.T) {
	v, err := NewPayloadValidator()
	require.NoError(t, err)

	keys := make([]string, 0, 65)
	for i := 0; i < 65; i++ {
		keys = append(keys, fmt.Sprintf(`"k%d":%d`, i, i))
	}
	err = v.ActionLog(domain.ActionLog{Metadata: json.RawMessage("{" + strings.Join(keys, ",") + "}")})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestPayloadValidatorAcceptsScalarSnapshots(t *testing.T) {
	v, err := NewPayloadValidator()
	require.NoError(t, err)

	for _, raw := range []string{`"old"`, `42`, `true`, `[1,"a"]`} {
		require.NoError(t, v.ActionLog(domain.ActionLog{OldValues: json.RawMessage(raw), NewValues: json.RawMessage(raw)}), raw)
		require.NoError(t, v.DataChangeLog(domain.DataChangeLog{OldData: json.RawMessage(raw)}), raw)
	}
}
