package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/packlabs/mentor_analytics/pipeline/utils"
)

// PipelineConfig содержит конфигурацию для одного запуска конвейера
type PipelineConfig struct {
	// Конфигурация для подключения к хранилищу (warehouse)
	WarehouseConfig DatabaseConfig `json:"warehouse_config"`

	// Каталог с исходными файлами данных
	DataDir string `json:"data_dir"`

	// Длительность сессии по умолчанию (когда нет события завершения)
	DefaultSessionDurationMinutes int `json:"default_session_duration_minutes"`

	// Группы тарифов менторов для сравнительного анализа.
	// Группы обязаны быть непустыми и непересекающимися.
	TiersGroupA []string `json:"tiers_group_a"`
	TiersGroupB []string `json:"tiers_group_b"`

	// Окно повторного бронирования в днях.
	// nil — окно не ограничено, любая вторая сессия засчитывается.
	RebookingWindowDays *int `json:"rebooking_window_days"`

	// Пороговые значения проверок качества данных
	DQMaxOrphanRate       float64 `json:"dq_max_orphan_rate"`
	DQMaxDurationMinutes  int     `json:"dq_max_duration_minutes"`

	// Таймаут одной фазы конвейера в секундах. 0 — таймаут отключен.
	StepTimeoutSeconds int `json:"step_timeout_seconds"`

	// Интервал запуска конвейера в режиме scheduled
	RunInterval time.Duration `json:"run_interval"`

	// Включение/отключение детального логирования
	EnableDetailedLogging bool `json:"enable_detailed_logging"`

	// Адрес HTTP-сервера результатов (режим serve)
	HTTPAddr string `json:"http_addr"`
}

// DatabaseConfig содержит настройки подключения к базе данных
type DatabaseConfig struct {
	Driver   string `json:"driver"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
}

// Значения конфигурации по умолчанию
var (
	DefaultWarehouseConfig = DatabaseConfig{
		Driver:   "mysql",
		Host:     "localhost",
		Port:     3306,
		User:     "root",
		Password: "",
		DBName:   "mentor_analytics",
	}

	DefaultPipelineConfig = PipelineConfig{
		WarehouseConfig:               DefaultWarehouseConfig,
		DataDir:                       "data",
		DefaultSessionDurationMinutes: 30,
		TiersGroupA:                   []string{"Gold"},
		TiersGroupB:                   []string{"Silver", "Bronze"},
		DQMaxOrphanRate:               0.05,
		DQMaxDurationMinutes:          240,
		StepTimeoutSeconds:            300,
		RunInterval:                   1 * time.Hour,
		EnableDetailedLogging:         true,
		HTTPAddr:                      ":8090",
	}
)

// GetConfig возвращает конфигурацию конвейера по умолчанию
func GetConfig() PipelineConfig {
	config := DefaultPipelineConfig

	// Окно повторного бронирования по умолчанию — 30 дней
	window := 30
	config.RebookingWindowDays = &window

	return config
}

// LoadFromFile читает конфигурацию из JSON-файла поверх значений по умолчанию.
// Отсутствующие в файле ключи сохраняют значения по умолчанию.
func LoadFromFile(path string) (PipelineConfig, error) {
	config := GetConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("некорректный JSON в файле конфигурации %s: %w", path, err)
	}

	return config, nil
}

// Validate проверяет конфигурацию на внутренние противоречия.
// Вызывается до старта любой фазы конвейера; ошибка здесь фатальна.
func (c *PipelineConfig) Validate() error {
	if len(c.TiersGroupA) == 0 {
		return fmt.Errorf("tiers_group_a должна содержать хотя бы один тариф")
	}
	if len(c.TiersGroupB) == 0 {
		return fmt.Errorf("tiers_group_b должна содержать хотя бы один тариф")
	}

	// Группы обязаны не пересекаться: пересечение сделало бы сравнение групп бессмысленным
	seen := make(map[string]bool, len(c.TiersGroupA))
	for _, tier := range c.TiersGroupA {
		seen[tier] = true
	}
	var overlap []string
	for _, tier := range c.TiersGroupB {
		if seen[tier] {
			overlap = append(overlap, tier)
		}
	}
	if len(overlap) > 0 {
		return fmt.Errorf("группы тарифов должны быть взаимоисключающими, пересечение: %v", overlap)
	}

	if c.DefaultSessionDurationMinutes <= 0 {
		return fmt.Errorf("default_session_duration_minutes должен быть > 0, получено: %d", c.DefaultSessionDurationMinutes)
	}

	if c.RebookingWindowDays != nil && *c.RebookingWindowDays <= 0 {
		return fmt.Errorf("rebooking_window_days должен быть > 0 или отсутствовать, получено: %d", *c.RebookingWindowDays)
	}

	if c.DQMaxOrphanRate < 0 || c.DQMaxOrphanRate > 1 {
		return fmt.Errorf("dq_max_orphan_rate должен быть в диапазоне [0, 1], получено: %f", c.DQMaxOrphanRate)
	}

	if c.DQMaxDurationMinutes <= 0 {
		return fmt.Errorf("dq_max_duration_minutes должен быть > 0, получено: %d", c.DQMaxDurationMinutes)
	}

	if c.StepTimeoutSeconds < 0 {
		return fmt.Errorf("step_timeout_seconds не может быть отрицательным, получено: %d", c.StepTimeoutSeconds)
	}

	return nil
}

// TiersASQL возвращает SQL-список группы A: 'Gold' или 'Gold', 'Platinum'
func (c *PipelineConfig) TiersASQL() string {
	return utils.BuildInList(c.TiersGroupA)
}

// TiersBSQL возвращает SQL-список группы B: 'Silver', 'Bronze'
func (c *PipelineConfig) TiersBSQL() string {
	return utils.BuildInList(c.TiersGroupB)
}

// GroupALabel возвращает человекочитаемую метку группы A: "Gold" или "Gold/Platinum"
func (c *PipelineConfig) GroupALabel() string {
	return strings.Join(c.TiersGroupA, "/")
}

// GroupBLabel возвращает человекочитаемую метку группы B: "Silver/Bronze"
func (c *PipelineConfig) GroupBLabel() string {
	return strings.Join(c.TiersGroupB, "/")
}

// RebookingWindow возвращает окно повторного бронирования.
// ok == false означает, что окно не ограничено.
func (c *PipelineConfig) RebookingWindow() (window time.Duration, ok bool) {
	if c.RebookingWindowDays == nil {
		return 0, false
	}
	return time.Duration(*c.RebookingWindowDays) * 24 * time.Hour, true
}

// StepTimeout возвращает таймаут фазы как time.Duration (0 — отключен)
func (c *PipelineConfig) StepTimeout() time.Duration {
	return time.Duration(c.StepTimeoutSeconds) * time.Second
}

// ToJSON сериализует конфигурацию для снимка в журнале запусков
func (c *PipelineConfig) ToJSON() ([]byte, error) {
	snapshot := struct {
		DefaultSessionDurationMinutes int      `json:"default_session_duration_minutes"`
		TiersGroupA                   []string `json:"tiers_group_a"`
		TiersGroupB                   []string `json:"tiers_group_b"`
		RebookingWindowDays           *int     `json:"rebooking_window_days"`
		DQMaxOrphanRate               float64  `json:"dq_max_orphan_rate"`
		DQMaxDurationMinutes          int      `json:"dq_max_duration_minutes"`
		StepTimeoutSeconds            int      `json:"step_timeout_seconds"`
	}{
		DefaultSessionDurationMinutes: c.DefaultSessionDurationMinutes,
		TiersGroupA:                   c.TiersGroupA,
		TiersGroupB:                   c.TiersGroupB,
		RebookingWindowDays:           c.RebookingWindowDays,
		DQMaxOrphanRate:               c.DQMaxOrphanRate,
		DQMaxDurationMinutes:          c.DQMaxDurationMinutes,
		StepTimeoutSeconds:            c.StepTimeoutSeconds,
	}
	return json.Marshal(snapshot)
}
