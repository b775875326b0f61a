// routes/api_routes.go
package routes

import (
	"database/sql"

	"github.com/gorilla/mux"

	"github.com/packlabs/mentor_analytics/middleware"
	"github.com/packlabs/mentor_analytics/pipeline"
	"github.com/packlabs/mentor_analytics/pipeline/config"
	"github.com/packlabs/mentor_analytics/pipeline/utils"
)

// SetupRoutes настраивает все маршруты API и WebSocket
func SetupRoutes(router *mux.Router, db *sql.DB, cfg *config.PipelineConfig, runner *pipeline.Runner, hub *StatusHub, logger *utils.PipelineLogger) {
	// Применяем CORS middleware
	router.Use(middleware.CORSMiddleware)

	// WebSocket-подписка на статусные события конвейера
	router.HandleFunc("/ws/status", hub.HandleConnections)

	// API журнала запусков
	router.HandleFunc("/api/runs", GetRunsHandler(db)).Methods("GET", "OPTIONS")

	// API результатов анализа
	router.HandleFunc("/api/results/rebooking", GetRebookingHandler(db, cfg, logger)).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/results/reliability", GetReliabilityHandler(db, logger)).Methods("GET", "OPTIONS")

	// Запуск конвейера по запросу
	router.HandleFunc("/api/run", TriggerRunHandler(runner, logger)).Methods("POST", "OPTIONS")
}
