package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"olimpiada_backend/internals/configs"
)

// ConnectDB opens the Postgres pool. PreferSimpleProtocol keeps it PgBouncer friendly.
func ConnectDB(cfg configs.DBConfig, log *zap.Logger, level gormLogger.LogLevel) (*gorm.DB, error) {
	log.Info("connecting to postgres", zap.String("host", cfg.Host), zap.String("db", cfg.Name))

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:         configs.NewGormLogger(log, level),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	log.Info("db connected")
	return db, nil
}

func TunePool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(60 * time.Second)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
	return nil
}

// WarmUpQueries fills the pool in the background once the server is starting.
func WarmUpQueries(db *gorm.DB, log *zap.Logger) {
	go func() {
		time.Sleep(500 * time.Millisecond)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := Ping(ctx, db); err != nil {
			log.Warn("warm-up ping failed", zap.Error(err))
		}
	}()
}

func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
