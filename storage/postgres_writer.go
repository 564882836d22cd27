package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"myhome-publisher/models"
)

// PostgresWriter keeps a ledger of submission results in PostgreSQL.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS submissions (
			id          SERIAL PRIMARY KEY,
			run_id      UUID         NOT NULL,
			folder      TEXT         NOT NULL,
			product_id  TEXT         NOT NULL DEFAULT '',
			address     TEXT         NOT NULL DEFAULT '',
			status      VARCHAR(20)  NOT NULL,
			attempts    INTEGER      NOT NULL DEFAULT 0,
			photos      INTEGER      NOT NULL DEFAULT 0,
			error       TEXT         NOT NULL DEFAULT '',
			started_at  TIMESTAMPTZ  NOT NULL,
			finished_at TIMESTAMPTZ  NOT NULL,
			UNIQUE (run_id, folder)
		);

		CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);
		CREATE INDEX IF NOT EXISTS idx_submissions_folder ON submissions(folder);
	`)
	return err
}

// Write batch-inserts results; a result already recorded for the same run
// and folder is updated in place.
func (pw *PostgresWriter) Write(results []*models.SubmissionResult) error {
	if len(results) == 0 {
		return nil
	}

	const batchSize = 50
	for i := 0; i < len(results); i += batchSize {
		end := i + batchSize
		if end > len(results) {
			end = len(results)
		}
		if err := pw.insertBatch(results[i:end]); err != nil {
			return err
		}
	}
	return nil
}

const submissionColumns = 10

func (pw *PostgresWriter) insertBatch(batch []*models.SubmissionResult) error {
	query, args := buildInsert(batch)
	if _, err := pw.db.Exec(query, args...); err != nil {
		return fmt.Errorf("postgres: insert: %w", err)
	}
	return nil
}

func buildInsert(batch []*models.SubmissionResult) (string, []interface{}) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*submissionColumns)

	for idx, r := range batch {
		base := idx * submissionColumns
		placeholders := make([]string, submissionColumns)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			r.RunID, r.Folder, r.ProductID, r.Address, string(r.Status),
			r.Attempts, r.Photos, r.Error, r.StartedAt, r.FinishedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO submissions (run_id, folder, product_id, address, status, attempts, photos, error, started_at, finished_at)
		VALUES %s
		ON CONFLICT (run_id, folder) DO UPDATE SET
			status = EXCLUDED.status,
			attempts = EXCLUDED.attempts,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at
	`, strings.Join(valueStrings, ","))
	return query, valueArgs
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// FetchRun retrieves the stored results of one run, in folder order.
func (pw *PostgresWriter) FetchRun(runID string) ([]*models.SubmissionResult, error) {
	rows, err := pw.db.Query(`
		SELECT run_id, folder, product_id, address, status, attempts, photos, error, started_at, finished_at
		FROM submissions
		WHERE run_id = $1
		ORDER BY folder
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch run: %w", err)
	}
	defer rows.Close()

	var results []*models.SubmissionResult
	for rows.Next() {
		r := &models.SubmissionResult{}
		var status string
		if err := rows.Scan(
			&r.RunID, &r.Folder, &r.ProductID, &r.Address, &status,
			&r.Attempts, &r.Photos, &r.Error, &r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		r.Status = models.Status(status)
		results = append(results, r)
	}
	return results, rows.Err()
}
