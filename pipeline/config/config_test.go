package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() PipelineConfig {
	cfg := GetConfig()
	return cfg
}

func TestValidateDefaults(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidateEmptyGroups(t *testing.T) {
	cfg := validConfig()
	cfg.TiersGroupA = nil
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.TiersGroupB = []string{}
	assert.Error(t, cfg.Validate())
}

func TestValidateOverlappingGroups(t *testing.T) {
	cfg := validConfig()
	cfg.TiersGroupA = []string{"Gold", "Silver"}
	cfg.TiersGroupB = []string{"Silver", "Bronze"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Silver")
}

func TestValidateRebookingWindow(t *testing.T) {
	cfg := validConfig()
	bad := 0
	cfg.RebookingWindowDays = &bad
	assert.Error(t, cfg.Validate())

	// nil-окно допустимо: вторая сессия засчитывается без ограничения срока
	cfg.RebookingWindowDays = nil
	assert.NoError(t, cfg.Validate())
}

func TestValidateThresholds(t *testing.T) {
	cfg := validConfig()
	cfg.DQMaxOrphanRate = 1.5
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.DQMaxDurationMinutes = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.StepTimeoutSeconds = -1
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.DefaultSessionDurationMinutes = -30
	assert.Error(t, cfg.Validate())
}

func TestRebookingWindowHelper(t *testing.T) {
	cfg := validConfig()
	window := 30
	cfg.RebookingWindowDays = &window

	d, ok := cfg.RebookingWindow()
	assert.True(t, ok)
	assert.Equal(t, 30*24*time.Hour, d)

	cfg.RebookingWindowDays = nil
	_, ok = cfg.RebookingWindow()
	assert.False(t, ok)
}

func TestTiersSQLSanitized(t *testing.T) {
	cfg := validConfig()
	cfg.TiersGroupA = []string{"Gold", "Sil'ver"}

	assert.Equal(t, "'Gold', 'Sil''ver'", cfg.TiersASQL())
	assert.Equal(t, "'Silver', 'Bronze'", cfg.TiersBSQL())
}

func TestGroupLabels(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "Gold", cfg.GroupALabel())
	assert.Equal(t, "Silver/Bronze", cfg.GroupBLabel())
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"data_dir": "/srv/data",
		"rebooking_window_days": 14,
		"tiers_group_a": ["Platinum"],
		"tiers_group_b": ["Gold"]
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/data", cfg.DataDir)
	require.NotNil(t, cfg.RebookingWindowDays)
	assert.Equal(t, 14, *cfg.RebookingWindowDays)
	assert.Equal(t, []string{"Platinum"}, cfg.TiersGroupA)

	// Незатронутые ключи сохраняют значения по умолчанию
	assert.Equal(t, 30, cfg.DefaultSessionDurationMinutes)
	assert.Equal(t, 240, cfg.DQMaxDurationMinutes)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/config.json")
	assert.Error(t, err)
}

func TestLoadFromFileBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestToJSONSnapshot(t *testing.T) {
	cfg := validConfig()
	data, err := cfg.ToJSON()
	require.NoError(t, err)

	assert.Contains(t, string(data), `"tiers_group_a":["Gold"]`)
	assert.Contains(t, string(data), `"rebooking_window_days":30`)
}
