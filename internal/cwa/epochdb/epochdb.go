// Package epochdb persists emitted epoch rows to a sqlite database, keyed
// by a per-conversion run so repeated conversions of the same recording can
// live side by side. The CSV stays the primary output; this store is an
// optional sink for downstream queries.
package epochdb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/artvalencio/biobankAccelerometerAnalysis/internal/cwa/epoch"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the epochs database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies any
// pending schema migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open epoch db: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun registers a conversion of sourceFile and returns its run ID.
// optionsJSON records the effective decode options for later inspection.
func (s *Store) CreateRun(sourceFile string, optionsJSON string) (string, error) {
	runID := uuid.New().String()
	_, err := s.db.Exec(`
		INSERT INTO runs (run_id, source_file, options_json, created_at)
		VALUES (?, ?, ?, ?)`,
		runID, sourceFile, optionsJSON, time.Now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return runID, nil
}

// InsertEpoch persists one emitted row under the given run.
func (s *Store) InsertEpoch(runID string, r epoch.Row) error {
	_, err := s.db.Exec(`
		INSERT INTO epochs (
			run_id, time_nanos, enmo_trunc, x_mean, y_mean, z_mean,
			x_range, y_range, z_range, x_std, y_std, z_std,
			temperature_c, samples, data_errors, clips_before, clips_after,
			raw_samples
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.Time.UnixNano(), r.EnmoTrunc, r.XMean, r.YMean, r.ZMean,
		r.XRange, r.YRange, r.ZRange, r.XStd, r.YStd, r.ZStd,
		r.TemperatureC, r.Samples, r.DataErrors, r.ClipsBefore, r.ClipsAfter,
		r.RawSamples,
	)
	if err != nil {
		return fmt.Errorf("insert epoch: %w", err)
	}
	return nil
}

// ListByRun returns a run's epochs in time order.
func (s *Store) ListByRun(runID string) ([]epoch.Row, error) {
	rows, err := s.db.Query(`
		SELECT time_nanos, enmo_trunc, x_mean, y_mean, z_mean,
		       x_range, y_range, z_range, x_std, y_std, z_std,
		       temperature_c, samples, data_errors, clips_before, clips_after,
		       raw_samples
		FROM epochs
		WHERE run_id = ?
		ORDER BY time_nanos`, runID)
	if err != nil {
		return nil, fmt.Errorf("query epochs: %w", err)
	}
	defer rows.Close()

	var out []epoch.Row
	for rows.Next() {
		var r epoch.Row
		var nanos int64
		if err := rows.Scan(
			&nanos, &r.EnmoTrunc, &r.XMean, &r.YMean, &r.ZMean,
			&r.XRange, &r.YRange, &r.ZRange, &r.XStd, &r.YStd, &r.ZStd,
			&r.TemperatureC, &r.Samples, &r.DataErrors, &r.ClipsBefore,
			&r.ClipsAfter, &r.RawSamples,
		); err != nil {
			return nil, fmt.Errorf("scan epoch: %w", err)
		}
		r.Time = time.Unix(0, nanos).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
