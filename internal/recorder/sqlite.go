package recorder

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/clarkhydro/pkg/clark"
	"github.com/chrissnell/clarkhydro/pkg/migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteRecorder persists runs and their hydrographs to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.SugaredLogger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and applies pending migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.SugaredLogger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// readers (the REST server) run alongside the scheduled writer
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := NewMigrator(db, logger).MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Infof("sqlite recorder opened: %s", dbPath)
	return &SQLiteRecorder{db: db, logger: logger}, nil
}

// NewMigrator returns a migrator for the run history schema embedded in this package
func NewMigrator(db *sql.DB, logger *zap.SugaredLogger) *migrate.Migrator {
	return migrate.NewMigrator(db, migrate.NewFSProvider(migrationsFS, "migrations", ""), logger)
}

// RecordRun implements Recorder
func (r *SQLiteRecorder) RecordRun(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("nil run")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, created_at, source, routing_constant, unit_scale, horizon_factor,
		 curve_entries, rain_pulses, skipped_rows, empty_curve,
		 peak_discharge, time_to_peak, mean_discharge, volume)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID, run.CreatedAt.UnixMilli(), run.Source,
		run.Params.RoutingConstant, run.Params.UnitScale, run.Params.HorizonFactor,
		run.CurveEntries, run.RainPulses, run.SkippedRows, run.EmptyCurve,
		run.Summary.PeakDischarge, run.Summary.TimeToPeak,
		run.Summary.MeanDischarge, run.Summary.Volume,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_points (run_id, t, discharge) VALUES (?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare points: %w", err)
	}
	defer stmt.Close()

	for _, p := range run.Points {
		if _, err := stmt.ExecContext(ctx, run.ID, p.T, p.Discharge); err != nil {
			return fmt.Errorf("insert point t=%d: %w", p.T, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	r.logger.Debugf("recorded run %s with %d points", run.ID, len(run.Points))
	return nil
}

const runColumns = `id, created_at, source, routing_constant, unit_scale, horizon_factor,
	curve_entries, rain_pulses, skipped_rows, empty_curve,
	peak_discharge, time_to_peak, mean_discharge, volume`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run       Run
		createdAt int64
		source    sql.NullString
	)
	err := row.Scan(&run.ID, &createdAt, &source,
		&run.Params.RoutingConstant, &run.Params.UnitScale, &run.Params.HorizonFactor,
		&run.CurveEntries, &run.RainPulses, &run.SkippedRows, &run.EmptyCurve,
		&run.Summary.PeakDischarge, &run.Summary.TimeToPeak,
		&run.Summary.MeanDischarge, &run.Summary.Volume,
	)
	if err != nil {
		return Run{}, err
	}
	run.CreatedAt = time.UnixMilli(createdAt).UTC()
	run.Source = source.String
	return run, nil
}

// ListRuns implements Recorder
func (r *SQLiteRecorder) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun implements Recorder
func (r *SQLiteRecorder) GetRun(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT t, discharge FROM run_points WHERE run_id = ? ORDER BY t`, id)
	if err != nil {
		return nil, fmt.Errorf("get points for %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var p clark.HydrographPoint
		if err := rows.Scan(&p.T, &p.Discharge); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		run.Points = append(run.Points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
