package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/smukkama/air-quality-server/internal/aqi"
	"github.com/smukkama/air-quality-server/internal/pipeline"
	"github.com/smukkama/air-quality-server/internal/series"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database
func Connect(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &DB{db}, nil
}

// migrationFiles lists the .sql files of a directory in lexical order
func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// RunMigrations executes all SQL migration files in order
func (db *DB) RunMigrations(migrationsDir string, logger *zap.SugaredLogger) error {
	files, err := migrationFiles(migrationsDir)
	if err != nil {
		return err
	}

	for _, filename := range files {
		logger.Infow("Running migration", "file", filename)

		content, err := os.ReadFile(filepath.Join(migrationsDir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	logger.Infow("Migrations completed", "count", len(files))
	return nil
}

// UpsertStation inserts or renames a station
func (db *DB) UpsertStation(ctx context.Context, st *Station) error {
	query := `
		INSERT INTO stations (station_id, name)
		VALUES ($1, $2)
		ON CONFLICT (station_id) DO UPDATE
		SET name = EXCLUDED.name,
		    updated_at = CURRENT_TIMESTAMP
	`
	_, err := db.ExecContext(ctx, query, st.ID, st.Name)
	return err
}

// GetStation retrieves a station by id, nil if it does not exist
func (db *DB) GetStation(ctx context.Context, id string) (*Station, error) {
	query := `
		SELECT station_id, name, created_at, updated_at
		FROM stations
		WHERE station_id = $1
	`

	var st Station
	err := db.QueryRowContext(ctx, query, id).Scan(&st.ID, &st.Name, &st.CreatedAt, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// InsertReadings stores readings in one transaction. A reading repeating an existing
// (station, pollutant, key) replaces the stored value.
func (db *DB) InsertReadings(ctx context.Context, readings []*Reading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO readings (station_id, pollutant, fecha_hora, observed_at, value, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (station_id, pollutant, fecha_hora) DO UPDATE
		SET value = EXCLUDED.value,
		    received_at = EXCLUDED.received_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range readings {
		if r.ObservedAt == nil {
			r.ObservedAt = observedAt(r.Key)
		}
		if _, err := stmt.ExecContext(ctx, r.Station, r.Pollutant, string(r.Key), r.ObservedAt, r.Value, r.ReceivedAt); err != nil {
			return fmt.Errorf("failed to insert reading %s/%s/%s: %w", r.Station, r.Pollutant, r.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit readings: %w", err)
	}
	return nil
}

// LoadReadings returns a station's readings observed at or after since. Readings whose
// key has no parseable time are always included.
func (db *DB) LoadReadings(ctx context.Context, station string, since time.Time) (pipeline.Input, error) {
	query := `
		SELECT pollutant, fecha_hora, value
		FROM readings
		WHERE station_id = $1 AND (observed_at IS NULL OR observed_at >= $2)
		ORDER BY id
	`

	var in pipeline.Input
	rows, err := db.QueryContext(ctx, query, station, since)
	if err != nil {
		return in, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pollutant string
			key       string
			value     sql.NullFloat64
		)
		if err := rows.Scan(&pollutant, &key, &value); err != nil {
			return in, fmt.Errorf("failed to scan reading: %w", err)
		}
		p, err := aqi.ParsePollutant(pollutant)
		if err != nil {
			continue
		}
		r := series.Reading{Key: series.Key(key)}
		if value.Valid {
			v := value.Float64
			r.Value = &v
		}
		in.Add(p, r)
	}
	return in, rows.Err()
}

// SaveHourlyAQI upserts a station's hourly AQI records and returns how many were written
func (db *DB) SaveHourlyAQI(ctx context.Context, station string, records []pipeline.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO aqi_hourly (
			station_id, fecha_hora, observed_at, pm25, o3, no2,
			aqi_pm25, aqi_o3, aqi_no2, aqi, level
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (station_id, fecha_hora) DO UPDATE
		SET pm25 = EXCLUDED.pm25,
		    o3 = EXCLUDED.o3,
		    no2 = EXCLUDED.no2,
		    aqi_pm25 = EXCLUDED.aqi_pm25,
		    aqi_o3 = EXCLUDED.aqi_o3,
		    aqi_no2 = EXCLUDED.aqi_no2,
		    aqi = EXCLUDED.aqi,
		    level = EXCLUDED.level,
		    updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var level *string
		if rec.Level != nil {
			s := string(*rec.Level)
			level = &s
		}
		if _, err := stmt.ExecContext(ctx,
			station, string(rec.Key), observedAt(rec.Key),
			rec.PM25, rec.O3, rec.NO2,
			rec.AQIPM25, rec.AQIO3, rec.AQINO2, rec.AQI, level,
		); err != nil {
			return 0, fmt.Errorf("failed to upsert hourly AQI %s: %w", rec.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit hourly AQI: %w", err)
	}
	return len(records), nil
}

// SaveForecast stores one row per forecast step
func (db *DB) SaveForecast(ctx context.Context, run *ForecastRun) error {
	if len(run.Values) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, v := range run.Values {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO forecasts (run_id, station_id, model, step, value, r2, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, run.RunID.String(), run.Station, run.Model, i+1, v, run.R2, run.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert %s forecast step %d: %w", run.Model, i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit forecast: %w", err)
	}
	return nil
}

// InsertAlertLog inserts a new alert log entry
func (db *DB) InsertAlertLog(ctx context.Context, alert *AlertLog) error {
	query := `
		INSERT INTO alerts_log (
			station_id, level, aqi, hours, start_key, start_time, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING alert_id
	`

	return db.QueryRowContext(ctx,
		query,
		alert.Station,
		alert.Level,
		alert.AQI,
		alert.Hours,
		string(alert.StartKey),
		alert.StartTime,
		alert.Status,
	).Scan(&alert.AlertID)
}

// UpdateAlertLogCleared marks an alert as cleared
func (db *DB) UpdateAlertLogCleared(ctx context.Context, alertID int64, endTime time.Time) error {
	query := `
		UPDATE alerts_log
		SET status = $1, end_time = $2, updated_at = CURRENT_TIMESTAMP
		WHERE alert_id = $3
	`

	_, err := db.ExecContext(ctx, query, AlertStatusCleared, endTime, alertID)
	return err
}
