package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUsersNormalizes(t *testing.T) {
	csvData := strings.Join([]string{
		"user_id,company_id,signup_date,status",
		"101,7,2025-06-01,Active",
		"102,7,2025-06-02T09:30:00,TRIAL",
	}, "\n")

	users, warnings, err := parseUsers(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Empty(t, warnings)

	assert.Equal(t, int64(101), users[0].UserID)
	assert.Equal(t, "active", users[0].Status)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), users[0].SignupDate)
	assert.Equal(t, "trial", users[1].Status)
}

func TestParseUsersDuplicateFirstWins(t *testing.T) {
	csvData := strings.Join([]string{
		"user_id,company_id,signup_date,status",
		"101,7,2025-06-01,active",
		"101,8,2025-06-05,churned",
		"102,7,2025-06-02,active",
	}, "\n")

	users, warnings, err := parseUsers(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, users, 2)

	// Побеждает первое вхождение, порядок сохраняется
	assert.Equal(t, int64(101), users[0].UserID)
	assert.Equal(t, int64(7), users[0].CompanyID)
	assert.Equal(t, int64(102), users[1].UserID)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "1 дубликатов user_id")
}

func TestParseUsersDropsBadIDs(t *testing.T) {
	csvData := strings.Join([]string{
		"user_id,company_id,signup_date,status",
		"abc,7,2025-06-01,active",
		"103,7,2025-06-02,active",
	}, "\n")

	users, warnings, err := parseUsers(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(103), users[0].UserID)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "нечитаемым user_id")
}

func TestParseUsersUnreadableSignupDateBecomesZero(t *testing.T) {
	csvData := strings.Join([]string{
		"user_id,company_id,signup_date,status",
		"101,7,вчера,active",
	}, "\n")

	users, _, err := parseUsers(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.True(t, users[0].SignupDate.IsZero())
}

func TestParseFlexibleTime(t *testing.T) {
	expected := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	assert.Equal(t, expected, parseFlexibleTime("2026-03-01T10:30:00Z"))
	assert.Equal(t, expected, parseFlexibleTime("2026-03-01T10:30:00"))
	assert.Equal(t, expected, parseFlexibleTime("2026-03-01 10:30:00"))
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), parseFlexibleTime("2026-03-01"))
	assert.True(t, parseFlexibleTime("").IsZero())
	assert.True(t, parseFlexibleTime("мусор").IsZero())
}
