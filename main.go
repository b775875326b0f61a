// main.go
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"

	"github.com/packlabs/mentor_analytics/pipeline"
	"github.com/packlabs/mentor_analytics/pipeline/config"
	"github.com/packlabs/mentor_analytics/pipeline/utils"
	"github.com/packlabs/mentor_analytics/routes"
)

func main() {
	// Параметры командной строки
	modePtr := flag.String("mode", "full", "Режим работы: full, ingest, transform, analyze, scheduled или serve")
	configPtr := flag.String("config", "", "Путь к JSON-файлу конфигурации (по умолчанию — встроенные значения)")

	flag.Parse()

	log.Println("Запуск конвейера аналитики менторских сессий в режиме:", *modePtr)

	cfg, err := loadConfig(*configPtr)
	if err != nil {
		log.Fatalf("Ошибка конфигурации: %v", err)
	}

	switch *modePtr {
	case "full", "ingest", "transform", "analyze":
		runOnce(cfg, pipeline.Mode(*modePtr))
	case "scheduled":
		runScheduled(cfg)
	case "serve":
		runServer(cfg)
	default:
		log.Println("Неизвестный режим работы:", *modePtr)
		log.Println("Доступные режимы: full, ingest, transform, analyze, scheduled, serve")
		os.Exit(1)
	}

	log.Println("Конвейер завершил работу")
}

// loadConfig возвращает конфигурацию из файла или значения по умолчанию
func loadConfig(path string) (config.PipelineConfig, error) {
	if path == "" {
		cfg := config.GetConfig()
		return cfg, cfg.Validate()
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// newRunner подключает хранилище и собирает Runner
func newRunner(cfg *config.PipelineConfig) (*pipeline.Runner, func(), error) {
	logger := utils.NewPipelineLogger(cfg.EnableDetailedLogging)
	logger.Info("Инициализация конвейера")

	db, err := config.ConnectWarehouse(*cfg)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		config.CloseWarehouse(db)
	}

	return pipeline.NewRunner(db, cfg, logger), cleanup, nil
}

// runOnce выполняет один запуск конвейера и завершает процесс
func runOnce(cfg config.PipelineConfig, mode pipeline.Mode) {
	runner, cleanup, err := newRunner(&cfg)
	if err != nil {
		log.Fatalf("Ошибка при инициализации конвейера: %v", err)
	}
	defer cleanup()

	if _, err := runner.Run(signalContext(), mode); err != nil {
		log.Fatalf("Ошибка при выполнении конвейера: %v", err)
	}
}

// runScheduled запускает конвейер по расписанию до сигнала завершения
func runScheduled(cfg config.PipelineConfig) {
	runner, cleanup, err := newRunner(&cfg)
	if err != nil {
		log.Fatalf("Ошибка при инициализации конвейера: %v", err)
	}
	defer cleanup()

	ctx := signalContext()

	scheduler := gocron.NewScheduler(time.UTC)
	log.Printf("Запуск планировщика конвейера с интервалом %v", cfg.RunInterval)

	_, err = scheduler.Every(cfg.RunInterval).Do(func() {
		log.Println("Запланированный запуск конвейера")
		if _, err := runner.Run(ctx, pipeline.ModeFull); err != nil {
			log.Printf("Ошибка при выполнении запланированного запуска: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Ошибка при настройке планировщика: %v", err)
	}

	scheduler.StartAsync()

	<-ctx.Done()

	scheduler.Stop()
	log.Println("Планировщик конвейера остановлен")
}

// runServer поднимает HTTP-сервер результатов и WebSocket-хаб статусов.
// Конвейер в этом режиме запускается только по запросу POST /api/run.
func runServer(cfg config.PipelineConfig) {
	logger := utils.NewPipelineLogger(cfg.EnableDetailedLogging)

	db, err := config.ConnectWarehouse(cfg)
	if err != nil {
		log.Fatalf("Ошибка при подключении к хранилищу: %v", err)
	}
	defer config.CloseWarehouse(db)

	runner := pipeline.NewRunner(db, &cfg, logger)

	hub := routes.NewStatusHub(logger)
	go hub.Run()
	runner.SetNotifier(hub)

	router := mux.NewRouter()
	routes.SetupRoutes(router, db, &cfg, runner, hub, logger)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Сервер результатов запущен на http://localhost%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Ошибка запуска сервера: %v", err)
		}
	}()

	ctx := signalContext()
	<-ctx.Done()
	log.Println("Получен сигнал завершения, останавливаем сервер...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Ошибка при остановке сервера: %v", err)
	}

	log.Println("Сервер остановлен")
}

// signalContext возвращает контекст, отменяемый сигналами SIGINT/SIGTERM
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalCh
		log.Println("Получен сигнал завершения. Останавливаем конвейер...")
		cancel()
	}()

	return ctx
}
