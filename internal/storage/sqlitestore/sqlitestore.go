// Package sqlitestore reads archived weather records from a
// weewx-compatible SQLite archive database.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/chrissnell/wlipd/internal/types"
	"github.com/chrissnell/wlipd/pkg/config"
)

// Store is a SQLite-backed archive store.
type Store struct {
	db *sql.DB
}

// New opens the archive database read-only.
func New(cfg *config.SQLiteData) (*Store, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, fmt.Errorf("SQLite archive path not configured")
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("could not open archive database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not open archive database: %w", err)
	}
	return &Store{db: db}, nil
}

const iterateQuery = `
SELECT dateTime, barometer, outTemp, inTemp, outHumidity, inHumidity,
       windSpeed, windGust, windDir, rainRate, rain, UV, radiation, ET
FROM archive
WHERE dateTime > ?
ORDER BY dateTime ASC
LIMIT ?`

// Iterate returns records newer than the given epoch in ascending time
// order.
func (s *Store) Iterate(ctx context.Context, after int64, limit int) ([]*types.Observation, error) {
	rows, err := s.db.QueryContext(ctx, iterateQuery, after, limit)
	if err != nil {
		return nil, fmt.Errorf("archive query failed: %w", err)
	}
	defer rows.Close()

	var out []*types.Observation
	for rows.Next() {
		var dateTime int64
		var barometer, outTemp, inTemp, outHumidity, inHumidity sql.NullFloat64
		var windSpeed, windGust, windDir, rainRate, rain, uv, radiation, et sql.NullFloat64

		if err := rows.Scan(&dateTime, &barometer, &outTemp, &inTemp, &outHumidity,
			&inHumidity, &windSpeed, &windGust, &windDir, &rainRate, &rain,
			&uv, &radiation, &et); err != nil {
			return nil, fmt.Errorf("archive row scan failed: %w", err)
		}

		out = append(out, &types.Observation{
			DateTime:    dateTime,
			Units:       types.UnitsUS,
			Barometer:   nullable(barometer),
			OutTemp:     nullable(outTemp),
			InTemp:      nullable(inTemp),
			OutHumidity: nullable(outHumidity),
			InHumidity:  nullable(inHumidity),
			WindSpeed:   nullable(windSpeed),
			WindGust:    nullable(windGust),
			WindDir:     nullable(windDir),
			RainRate:    nullable(rainRate),
			Rain:        nullable(rain),
			UV:          nullable(uv),
			Radiation:   nullable(radiation),
			ET:          nullable(et),
		})
	}
	return out, rows.Err()
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
