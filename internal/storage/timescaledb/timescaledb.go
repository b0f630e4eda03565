// Package timescaledb reads archived weather records from the
// collector's TimescaleDB hypertable.
package timescaledb

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/chrissnell/wlipd/internal/database"
	"github.com/chrissnell/wlipd/internal/log"
	"github.com/chrissnell/wlipd/internal/types"
	"github.com/chrissnell/wlipd/pkg/config"
)

const defaultTable = "weather"

// archiveRow maps one row of the collector's weather table. Nullable
// columns use pointers so a missing sensor stays missing on the wire.
type archiveRow struct {
	Time         time.Time `gorm:"column:time"`
	Barometer    *float64  `gorm:"column:barometer"`
	OutTemp      *float64  `gorm:"column:outtemp"`
	InTemp       *float64  `gorm:"column:intemp"`
	OutHumidity  *float64  `gorm:"column:outhumidity"`
	InHumidity   *float64  `gorm:"column:inhumidity"`
	WindSpeed    *float64  `gorm:"column:windspeed"`
	WindGust     *float64  `gorm:"column:windgust"`
	WindDir      *float64  `gorm:"column:winddir"`
	RainRate     *float64  `gorm:"column:rainrate"`
	Rain         *float64  `gorm:"column:rainincremental"`
	UV           *float64  `gorm:"column:uv"`
	Radiation    *float64  `gorm:"column:radiation"`
	ET           *float64  `gorm:"column:dayet"`
	ForecastRule *int      `gorm:"column:forecastrule"`
}

// Store is a TimescaleDB-backed archive store.
type Store struct {
	db    *gorm.DB
	table string
}

// New connects to TimescaleDB and verifies the connection.
func New(ctx context.Context, cfg *config.TimescaleDBData) (*Store, error) {
	if cfg == nil || cfg.ConnectionString == "" {
		return nil, fmt.Errorf("TimescaleDB connection string not configured")
	}

	log.Info("connecting to TimescaleDB...")
	db, err := database.CreateConnection(cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("could not connect to TimescaleDB: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("TimescaleDB ping failed: %w", err)
	}

	table := cfg.Table
	if table == "" {
		table = defaultTable
	}
	return &Store{db: db, table: table}, nil
}

// Iterate returns records newer than the given epoch in ascending time
// order.
func (s *Store) Iterate(ctx context.Context, after int64, limit int) ([]*types.Observation, error) {
	var rows []archiveRow
	err := s.db.WithContext(ctx).
		Table(s.table).
		Where("time > ?", time.Unix(after, 0)).
		Order("time ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("archive query failed: %w", err)
	}

	out := make([]*types.Observation, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toObservation())
	}
	return out, nil
}

func (r *archiveRow) toObservation() *types.Observation {
	return &types.Observation{
		DateTime:     r.Time.Unix(),
		Units:        types.UnitsUS,
		Barometer:    r.Barometer,
		OutTemp:      r.OutTemp,
		InTemp:       r.InTemp,
		OutHumidity:  r.OutHumidity,
		InHumidity:   r.InHumidity,
		WindSpeed:    r.WindSpeed,
		WindGust:     r.WindGust,
		WindDir:      r.WindDir,
		RainRate:     r.RainRate,
		Rain:         r.Rain,
		UV:           r.UV,
		Radiation:    r.Radiation,
		ET:           r.ET,
		ForecastRule: r.ForecastRule,
	}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
