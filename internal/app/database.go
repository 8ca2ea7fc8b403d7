package app

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pond75jnu/svcmon/config"
)

func getDatabase(cfg config.DBConfig, workdir string) *gorm.DB {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		dialector = sqlite.Open(filepath.Join(workdir, "data", "svcmon.db"))
	default:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name)
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		zap.S().Panicf("failed to connect database: %v", err)
	}

	configureConnectionPool(db, cfg)
	return db
}

// configureConnectionPool bounds the pool; broken connections are discarded
// by the driver on failed validation rather than returned to the pool.
func configureConnectionPool(db *gorm.DB, cfg config.DBConfig) {
	sqlDB, err := db.DB()
	if err != nil {
		zap.S().Errorf("get sql.DB error: %v", err)
		return
	}

	maxOpen := cfg.MaxConn
	if maxOpen <= 0 {
		maxOpen = 32
	}
	maxIdle := cfg.IdleConn
	if maxIdle <= 0 || maxIdle > maxOpen {
		maxIdle = maxOpen / 4
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(300 * time.Second)
	sqlDB.SetConnMaxIdleTime(60 * time.Second)
}
