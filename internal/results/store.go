// Package results persists finished runs and draws their loss curves.
package results

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	dataset     TEXT NOT NULL,
	seed        INTEGER NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	epochs      INTEGER NOT NULL,
	best_epoch  INTEGER NOT NULL,
	best_loss   REAL NOT NULL,
	mean_acc    REAL NOT NULL,
	std_acc     REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS trials (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	trial    INTEGER NOT NULL,
	accuracy REAL NOT NULL,
	PRIMARY KEY (run_id, trial)
);
CREATE TABLE IF NOT EXISTS losses (
	run_id TEXT NOT NULL REFERENCES runs(id),
	epoch  INTEGER NOT NULL,
	loss   REAL NOT NULL,
	PRIMARY KEY (run_id, epoch)
);
`

// Run is one finished train-and-probe run.
type Run struct {
	ID        string
	Dataset   string
	Seed      int64
	StartedAt time.Time
	Epochs    int
	BestEpoch int
	BestLoss  float64
	MeanAcc   float64
	StdAcc    float64

	Accuracies []float64
	Losses     []float64
}

// NewRun returns a run with a fresh id.
func NewRun(dataset string, seed int64) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Dataset:   dataset,
		Seed:      seed,
		StartedAt: time.Now().UTC(),
	}
}

// Store is a SQLite database of runs.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open results database %q", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to create schema in %q", path)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts run with its trials and losses in one transaction.
func (s *Store) Save(ctx context.Context, run *Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, dataset, seed, started_at, epochs, best_epoch, best_loss, mean_acc, std_acc)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Dataset, run.Seed, run.StartedAt, run.Epochs, run.BestEpoch, run.BestLoss, run.MeanAcc, run.StdAcc)
	if err != nil {
		return errors.Wrapf(err, "failed to insert run %s", run.ID)
	}
	for i, acc := range run.Accuracies {
		if _, err := tx.ExecContext(ctx, `INSERT INTO trials (run_id, trial, accuracy) VALUES (?, ?, ?)`, run.ID, i, acc); err != nil {
			return errors.Wrapf(err, "failed to insert trial %d of run %s", i, run.ID)
		}
	}
	for epoch, loss := range run.Losses {
		if _, err := tx.ExecContext(ctx, `INSERT INTO losses (run_id, epoch, loss) VALUES (?, ?, ?)`, run.ID, epoch, loss); err != nil {
			return errors.Wrapf(err, "failed to insert loss %d of run %s", epoch, run.ID)
		}
	}
	return errors.Wrap(tx.Commit(), "failed to commit run")
}

// Get loads a run with its trials and losses.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	run := &Run{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT dataset, seed, started_at, epochs, best_epoch, best_loss, mean_acc, std_acc FROM runs WHERE id = ?`, id).
		Scan(&run.Dataset, &run.Seed, &run.StartedAt, &run.Epochs, &run.BestEpoch, &run.BestLoss, &run.MeanAcc, &run.StdAcc)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load run %s", id)
	}

	if run.Accuracies, err = s.column(ctx, `SELECT accuracy FROM trials WHERE run_id = ? ORDER BY trial`, id); err != nil {
		return nil, err
	}
	if run.Losses, err = s.column(ctx, `SELECT loss FROM losses WHERE run_id = ? ORDER BY epoch`, id); err != nil {
		return nil, err
	}
	return run, nil
}

// Summaries returns (mean, std) accuracy of every run on dataset in start
// order.
func (s *Store) Summaries(ctx context.Context, dataset string) ([][2]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT mean_acc, std_acc FROM runs WHERE dataset = ? ORDER BY started_at`, dataset)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query runs of %q", dataset)
	}
	defer rows.Close()

	var out [][2]float64
	for rows.Next() {
		var v [2]float64
		if err := rows.Scan(&v[0], &v[1]); err != nil {
			return nil, errors.Wrap(err, "failed to scan run summary")
		}
		out = append(out, v)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate runs")
}

func (s *Store) column(ctx context.Context, query, id string) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query run %s", id)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrapf(err, "failed to scan run %s", id)
		}
		out = append(out, v)
	}
	return out, errors.Wrapf(rows.Err(), "failed to iterate run %s", id)
}
