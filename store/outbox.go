package store

import (
	"context"
	"time"
)

// OutboxJob is a pending outbound relay delivery.
type OutboxJob struct {
	ID        int64
	JobID     string
	Kind      string
	Payload   []byte
	Retries   int
	LastError string
	CreatedAt time.Time
	SentAt    *time.Time
	FailedAt  *time.Time
}

func (db *DB) EnqueueOutbox(ctx context.Context, jobID, kind string, payload []byte, at time.Time) error {
	_, err := db.ExecContext(ctx, db.Q(`INSERT INTO outbox (job_id, kind, payload, created_at) VALUES (?, ?, ?, ?)`),
		jobID, kind, payload, db.ts(at))
	return err
}

// ListPendingOutbox returns jobs that are neither sent nor abandoned.
func (db *DB) ListPendingOutbox(ctx context.Context, limit int) ([]*OutboxJob, error) {
	rows, err := db.QueryContext(ctx, db.Q(`SELECT id, job_id, kind, payload, retries, last_error, created_at FROM outbox WHERE sent_at IS NULL AND failed_at IS NULL ORDER BY id LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []*OutboxJob
	for rows.Next() {
		var j OutboxJob
		var createdAt any
		if err := rows.Scan(&j.ID, &j.JobID, &j.Kind, &j.Payload, &j.Retries, &j.LastError, &createdAt); err != nil {
			return nil, err
		}
		j.CreatedAt = parseTime(createdAt)
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

func (db *DB) AckOutbox(ctx context.Context, id int64, at time.Time) error {
	_, err := db.ExecContext(ctx, db.Q(`UPDATE outbox SET sent_at=? WHERE id=?`), db.ts(at), id)
	return err
}

// FailOutbox records a delivery failure. The job is abandoned once retries
// reaches maxRetries.
func (db *DB) FailOutbox(ctx context.Context, id int64, cause string, maxRetries int, at time.Time) error {
	if _, err := db.ExecContext(ctx, db.Q(`UPDATE outbox SET retries=retries+1, last_error=? WHERE id=?`), cause, id); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, db.Q(`UPDATE outbox SET failed_at=? WHERE id=? AND retries >= ?`), db.ts(at), id, maxRetries)
	return err
}

// GetOutboxJob loads one job by row id.
func (db *DB) GetOutboxJob(ctx context.Context, id int64) (*OutboxJob, error) {
	var j OutboxJob
	var createdAt, sentAt, failedAt any
	err := db.QueryRowContext(ctx, db.Q(`SELECT id, job_id, kind, payload, retries, last_error, created_at, sent_at, failed_at FROM outbox WHERE id=?`), id).
		Scan(&j.ID, &j.JobID, &j.Kind, &j.Payload, &j.Retries, &j.LastError, &createdAt, &sentAt, &failedAt)
	if err != nil {
		return nil, err
	}
	j.CreatedAt = parseTime(createdAt)
	j.SentAt = parseTimePtr(sentAt)
	j.FailedAt = parseTimePtr(failedAt)
	return &j, nil
}
