package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestValidateCSVOK(t *testing.T) {
	path := writeTempFile(t, "users.csv", "user_id,status\n101,active\n")
	assert.Empty(t, ValidateCSV(path, []string{"user_id"}))
}

func TestValidateCSVMissingFile(t *testing.T) {
	issues := ValidateCSV("/nonexistent/users.csv", []string{"user_id"})
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "не найден")
}

func TestValidateCSVMissingColumn(t *testing.T) {
	path := writeTempFile(t, "users.csv", "id,status\n101,active\n")
	issues := ValidateCSV(path, []string{"user_id"})
	require.NotEmpty(t, issues)
	assert.Contains(t, issues[0], "user_id")
}

func TestValidateCSVNoDataRows(t *testing.T) {
	path := writeTempFile(t, "users.csv", "user_id,status\n")
	issues := ValidateCSV(path, []string{"user_id"})
	require.NotEmpty(t, issues)
	assert.Contains(t, issues[0], "не содержит строк данных")
}

func TestCheckEncodingRejectsBadUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0x41}, 0644))

	issues := CheckEncoding(path)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "UTF-8")
}

func TestValidateJSONFile(t *testing.T) {
	ok := writeTempFile(t, "events.json", `[{"event_id": "e1"}]`)
	assert.Empty(t, ValidateJSONFile(ok))

	empty := writeTempFile(t, "empty.json", `[]`)
	issues := ValidateJSONFile(empty)
	require.NotEmpty(t, issues)
	assert.Contains(t, issues[0], "пустой JSON-массив")

	object := writeTempFile(t, "object.json", `{"event_id": "e1"}`)
	issues = ValidateJSONFile(object)
	require.NotEmpty(t, issues)
	assert.Contains(t, issues[0], "JSON-массивом")
}

func TestDetectCSVDuplicates(t *testing.T) {
	path := writeTempFile(t, "users.csv", "user_id,status\n101,active\n102,active\n101,churned\n")

	total, dupes := DetectCSVDuplicates(path, "user_id")
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, dupes)
}
