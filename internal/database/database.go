package database

import (
	"fmt"
	"log"

	"storepulse/internal/config"
	"storepulse/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var GormDB *gorm.DB

func InitGorm(cfg *config.Config) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
		dialector = postgres.Open(dsn)
	default:
		dialector = sqlite.Open(cfg.DBPath)
	}

	var err error
	GormDB, err = gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database (%s): %v", cfg.DBDriver, err)
	}

	log.Printf("Connected to %s database", cfg.DBDriver)

	err = GormDB.AutoMigrate(
		&models.Connection{},
		&models.Device{},
		&models.MessageTemplate{},
		&models.Automation{},
		&models.DispatchLog{},
	)
	if err != nil {
		log.Fatalf("Failed to run auto-migration: %v", err)
	}

	log.Println("Database migration completed")
}
