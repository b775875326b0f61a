package config

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// ConnectWarehouse устанавливает подключение к аналитическому хранилищу.
// Конвейер работает через единственное подключение: одна фаза за раз,
// один писатель — это внешний инвариант, который поддерживает оркестратор.
func ConnectWarehouse(config PipelineConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		config.WarehouseConfig.User,
		config.WarehouseConfig.Password,
		config.WarehouseConfig.Host,
		config.WarehouseConfig.Port,
		config.WarehouseConfig.DBName,
	)

	db, err := sql.Open(config.WarehouseConfig.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к хранилищу: %w", err)
	}

	// Настройка параметров подключения
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось установить соединение с хранилищем: %w", err)
	}

	log.Println("Успешное подключение к аналитическому хранилищу")
	return db, nil
}

// CloseWarehouse закрывает подключение к хранилищу
func CloseWarehouse(db *sql.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		log.Printf("Ошибка при закрытии соединения с хранилищем: %v", err)
	} else {
		log.Println("Соединение с хранилищем закрыто")
	}
}
