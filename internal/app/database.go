package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/talkincode/toughpos/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func postgresDSN(cfg config.DBConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name)
}

// getDatabase opens postgres in deployed mode and a local sqlite file otherwise
func getDatabase(cfg config.DBConfig, appcfg *config.AppConfig) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	if cfg.Debug {
		gcfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case "postgres":
		dialector = postgres.Open(postgresDSN(cfg))
	case "sqlite", "":
		file := appcfg.GetSqliteFile()
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, errors.Wrap(err, "create sqlite dir")
		}
		dialector = sqlite.Open(file + "?_foreign_keys=on&_busy_timeout=5000")
	default:
		return nil, errors.Errorf("unsupported database type %q", cfg.Type)
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", cfg.Type)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Type == "postgres" {
		sqlDB.SetMaxOpenConns(cfg.MaxConn)
		sqlDB.SetMaxIdleConns(cfg.IdleConn)
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}
