package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/mindjourney-backend/internal/domain"
)

func AutoMigrateAll(conn *gorm.DB) error {
	if err := conn.AutoMigrate(types.Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}
