package database

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stationhub/internal/models"
)

// SeedAdminUser creates the bootstrap admin account if it does not exist yet.
// Existing accounts are left alone so a rotated password survives restarts.
func SeedAdminUser(db *gorm.DB, username, password string) error {
	if username == "" || password == "" {
		slog.Warn("admin seed skipped: no credentials configured")
		return nil
	}

	var existing models.Users
	err := db.Where("username = ?", username).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("look up admin: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := models.Users{
		Username:     username,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
	}

	// UPSERT based on 'username' to stay safe when two instances boot together
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoNothing: true,
	}).Create(&admin).Error; err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	slog.Info("seeded admin user", "username", username)
	return nil
}
