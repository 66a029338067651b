package database

import (
	"log/slog"

	"scribe/common"
	"scribe/models"

	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB, logger *slog.Logger) error {
	logger = common.ResolveLogger(logger)
	logger.Info("running database migrations")

	err := db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Post{},
		&models.Comment{},
	)

	if err != nil {
		logger.Error("migrations failed", "error", err)
		return err
	}

	logger.Info("migrations completed")
	return nil
}
