package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	cases := []struct {
		in      int
		want    int
		wantErr bool
	}{
		{in: 0, want: DefaultLimit},
		{in: 5, want: 5},
		{in: MaxLimit + 1, want: MaxLimit},
		{in: -1, wantErr: true},
	}
	for _, tc := range cases {
		got, err := NormalizeLimit(tc.in)
		if tc.wantErr {
			require.ErrorIs(t, err, ErrValidation)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestTimeWindowRejectsInvertedBounds(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	assert.ErrorIs(t, TimeWindow{StartDate: &end, EndDate: &start}.Validate(), ErrValidation)
	assert.NoError(t, TimeWindow{StartDate: &start, EndDate: &start}.Validate())
	assert.NoError(t, TimeWindow{EndDate: &end}.Validate())
}

func TestParseEnumsRejectUnknownValues(t *testing.T) {
	a, err := ParseAction(" user_login ")
	require.NoError(t, err)
	assert.Equal(t, ActionUserLogin, a)

	_, err = ParseAction("USER_TELEPORT")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseSeverity("FATAL")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseSystemEventType("REBOOT")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseOperation("UPSERT")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseClassification("SECRET")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseRole("ROOT")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSeverityOrdering(t *testing.T) {
	assert.Less(t, SeverityInfo.Rank(), SeverityWarning.Rank())
	assert.Less(t, SeverityWarning.Rank(), SeverityError.Rank())
	assert.Less(t, SeverityError.Rank(), SeverityCritical.Rank())
}

func TestResolutionConsistent(t *testing.T) {
	now := time.Now()
	assert.True(t, SystemEvent{}.ResolutionConsistent())
	assert.True(t, SystemEvent{IsResolved: true, ResolvedAt: &now, ResolvedBy: "admin1", Resolution: "fixed"}.ResolutionConsistent())
	assert.False(t, SystemEvent{IsResolved: true, ResolvedBy: "admin1"}.ResolutionConsistent())
	assert.False(t, SystemEvent{Resolution: "fixed"}.ResolutionConsistent())
}

func TestDataChangeLogDefaultsToInternal(t *testing.T) {
	d := DataChangeLog{TableName: "users", RecordID: "u1", Operation: OperationUpdate}.WithDefaults()
	assert.Equal(t, ClassificationInternal, d.DataClassification)

	d = DataChangeLog{DataClassification: ClassificationSensitive}.WithDefaults()
	assert.Equal(t, ClassificationSensitive, d.DataClassification)
}

func TestErrorKindsAreDistinct(t *testing.T) {
	var authErr error = &AuthorizationError{Role: RoleClient, Operation: "read statistics"}
	assert.ErrorIs(t, authErr, ErrForbidden)
	assert.False(t, errors.Is(authErr, ErrValidation))

	assert.ErrorIs(t, ErrAlreadyResolved, ErrConflict)
	assert.ErrorIs(t, ActionLog{}.Validate(), ErrValidation)

	assert.ErrorIs(t, Caller{}.Validate(), ErrForbidden)
	assert.NoError(t, Caller{ID: "u1", Role: RoleClient}.Validate())
}
