package config

import (
	"fmt"
	"time"

	"admin-auth/migrations"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// connectToDatabase підключається до PostgreSQL бази даних через GORM
func connectToDatabase(cfg *Config) (*gorm.DB, error) {
	logrus.Infof("Connecting to PostgreSQL database: %s@%s:%d/%s",
		cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		// unique violation повертається як gorm.ErrDuplicatedKey
		TranslateError: true,
	}
	if cfg.IsDevelopment() {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	} else {
		gormConfig.Logger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseDSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	connectionMaxLifetime := durationOr(cfg.Database.ConnectionMaxLifetime, 5*time.Minute)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConnections)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConnections)
	sqlDB.SetConnMaxLifetime(connectionMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"max_open":     cfg.Database.MaxOpenConnections,
		"max_idle":     cfg.Database.MaxIdleConnections,
		"max_lifetime": connectionMaxLifetime,
	}).Info("Database connection pool configured")
	return db, nil
}

func migrate(db *gorm.DB) error {
	applied, err := migrations.Apply(db, migrations.All())
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	logrus.WithField("applied", applied).Info("Database migrations completed")
	return nil
}

// RunMigrations виконує тільки міграції без запуску сервера
func RunMigrations(cfg *Config) error {
	setupLogging(cfg)

	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("migrations require the postgres driver, got %q", cfg.Database.Driver)
	}

	db, err := connectToDatabase(cfg)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	return migrate(db)
}
