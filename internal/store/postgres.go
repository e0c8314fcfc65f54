package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"carelink/services/api/internal/healthexport"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, err
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Health(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// UpsertDailySummaries replaces each (user, day, metric) row wholesale inside
// one transaction: the newest import wins for every day it covers, which keeps
// re-imports idempotent.
func (p *Postgres) UpsertDailySummaries(ctx context.Context, userID string, summaries []healthexport.DailySummary) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, summary := range summaries {
		_, err := tx.Exec(
			ctx,
			`INSERT INTO daily_summaries (user_id, day, metric, value, sample_count, method, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, now())
			 ON CONFLICT (user_id, day, metric) DO UPDATE
			 SET value = EXCLUDED.value,
			     sample_count = EXCLUDED.sample_count,
			     method = EXCLUDED.method,
			     updated_at = now()`,
			userID,
			summary.Day,
			string(summary.Metric),
			summary.Value,
			summary.SampleCount,
			string(summary.Method),
		)
		if err != nil {
			return fmt.Errorf("upsert summary %s/%s: %w", summary.Day, summary.Metric, err)
		}
	}

	return tx.Commit(ctx)
}

func (p *Postgres) RecordImportRun(ctx context.Context, run healthexport.ImportRun) error {
	skipped, err := json.Marshal(run.Report.Skipped)
	if err != nil {
		return err
	}
	failed, err := json.Marshal(run.Report.Failed)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(
		ctx,
		`INSERT INTO import_runs
		   (id, user_id, state, total, imported, skipped, failed, duration_ms, structural_reason, archive_object_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		run.ID,
		run.UserID,
		string(run.State),
		run.Report.Total,
		run.Report.Imported,
		skipped,
		failed,
		run.Report.DurationMs,
		nullable(run.StructuralReason),
		nullable(run.ArchiveObjectKey),
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record import run: %w", err)
	}
	return nil
}

// SetImportArchiveKey links an archived raw export object to its run after the
// archive write succeeds.
func (p *Postgres) SetImportArchiveKey(ctx context.Context, runID, objectKey string) error {
	_, err := p.pool.Exec(
		ctx,
		`UPDATE import_runs SET archive_object_key = $2 WHERE id = $1`,
		runID,
		objectKey,
	)
	return err
}

func (p *Postgres) ListDailySummaries(ctx context.Context, userID string, filter SummaryFilter) ([]SummaryRow, error) {
	query := `SELECT user_id, day::text, metric, value, sample_count, method, updated_at
	          FROM daily_summaries
	          WHERE user_id = $1`
	args := []any{userID}

	if filter.From != "" {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND day >= $%d", len(args))
	}
	if filter.To != "" {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND day <= $%d", len(args))
	}
	if filter.Metric != "" {
		args = append(args, filter.Metric)
		query += fmt.Sprintf(" AND metric = $%d", len(args))
	}
	query += " ORDER BY day ASC, metric ASC"

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]SummaryRow, 0)
	for rows.Next() {
		var row SummaryRow
		if err := rows.Scan(
			&row.UserID,
			&row.Day,
			&row.Metric,
			&row.Value,
			&row.SampleCount,
			&row.Method,
			&row.UpdatedAt,
		); err != nil {
			return nil, err
		}
		summaries = append(summaries, row)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return summaries, nil
}

func (p *Postgres) GetImportRun(ctx context.Context, userID, runID string) (healthexport.ImportRun, error) {
	row := p.pool.QueryRow(
		ctx,
		`SELECT id, user_id, state, total, imported, skipped, failed, duration_ms,
		        COALESCE(structural_reason, ''), COALESCE(archive_object_key, ''), created_at
		 FROM import_runs
		 WHERE user_id = $1 AND id = $2`,
		userID,
		runID,
	)
	return scanImportRun(row)
}

func (p *Postgres) ListImportRuns(ctx context.Context, userID string, limit int) ([]healthexport.ImportRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := p.pool.Query(
		ctx,
		`SELECT id, user_id, state, total, imported, skipped, failed, duration_ms,
		        COALESCE(structural_reason, ''), COALESCE(archive_object_key, ''), created_at
		 FROM import_runs
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]healthexport.ImportRun, 0)
	for rows.Next() {
		run, err := scanImportRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

// CleanupExpiredRuns deletes import runs past retention and returns the archive
// object keys that should be deleted alongside them. Daily summaries are user
// data and are never expired here.
func (p *Postgres) CleanupExpiredRuns(ctx context.Context, retentionDays int) (CleanupResult, error) {
	if retentionDays < 1 {
		return CleanupResult{}, fmt.Errorf("retentionDays must be >= 1")
	}

	rows, err := p.pool.Query(
		ctx,
		`DELETE FROM import_runs
		 WHERE created_at < now() - ($1::int * interval '1 day')
		 RETURNING COALESCE(archive_object_key, '')`,
		retentionDays,
	)
	if err != nil {
		return CleanupResult{}, err
	}
	defer rows.Close()

	result := CleanupResult{RetentionDays: retentionDays, DeletedArchiveKeys: []string{}}
	for rows.Next() {
		var objectKey string
		if err := rows.Scan(&objectKey); err != nil {
			return CleanupResult{}, err
		}
		result.DeletedRuns++
		if objectKey != "" {
			result.DeletedArchiveKeys = append(result.DeletedArchiveKeys, objectKey)
		}
	}

	if rows.Err() != nil {
		return CleanupResult{}, rows.Err()
	}
	return result, nil
}

func scanImportRun(row pgx.Row) (healthexport.ImportRun, error) {
	var (
		run              healthexport.ImportRun
		state            string
		skipped, failed  []byte
		structuralReason string
		archiveKey       string
	)

	err := row.Scan(
		&run.ID,
		&run.UserID,
		&state,
		&run.Report.Total,
		&run.Report.Imported,
		&skipped,
		&failed,
		&run.Report.DurationMs,
		&structuralReason,
		&archiveKey,
		&run.CreatedAt,
	)
	if err != nil {
		return healthexport.ImportRun{}, err
	}

	run.State = healthexport.RunState(state)
	run.StructuralReason = structuralReason
	run.ArchiveObjectKey = archiveKey

	if err := json.Unmarshal(skipped, &run.Report.Skipped); err != nil {
		return healthexport.ImportRun{}, fmt.Errorf("decode skipped tallies: %w", err)
	}
	if err := json.Unmarshal(failed, &run.Report.Failed); err != nil {
		return healthexport.ImportRun{}, fmt.Errorf("decode failed tallies: %w", err)
	}

	return run, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
