// Package database provides database client functionality for
// TimescaleDB connections.
package database

import (
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/wlipd/internal/log"
	"go.uber.org/zap"
)

// CreateConnection opens a gorm connection to TimescaleDB with query
// logging routed through zap.
func CreateConnection(connectionString string) (*gorm.DB, error) {
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: false,
			Colorful:                  false,
		},
	)

	return gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
}
