package database

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"stationhub/internal/config"
	"stationhub/internal/models"
)

type Client struct {
	DB *gorm.DB
}

func New(cfg *config.Config) (*Client, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// Connection Pool Settings
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	slog.Info("database connected", "host", cfg.Database.Host, "name", cfg.Database.Name)

	return &Client{DB: db}, nil
}

// AutoMigrate creates/updates tables based on struct definitions
func (c *Client) AutoMigrate() error {
	slog.Info("running database migrations")
	if err := c.DB.AutoMigrate(
		&models.Station{},
		&models.Feedback{},
		&models.Users{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
