package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reactify-service/internal/entity"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrNotClaimable means the job was not in a claimable state,
	// typically because another worker won the claim race.
	ErrNotClaimable = errors.New("job not claimable")
)

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, url string, priority int, opts entity.ConversionOptions) (uuid.UUID, error) {
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return uuid.Nil, err
	}

	const q = `
INSERT INTO jobs (url, state, priority, options)
VALUES ($1, 'queued', $2, $3)
RETURNING id;
`
	var id uuid.UUID
	if err := r.pool.QueryRow(ctx, q, url, priority, optsJSON).Scan(&id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	const q = `
SELECT id, url, platform, state, priority, options, result,
       error_kind, error_message, components_count, cancel_requested,
       created_at, updated_at, completed_at
FROM jobs
WHERE id = $1;
`

	var (
		job         entity.Job
		platform    *string
		stateText   string
		optsBytes   []byte
		resultBytes []byte
		kindText    *string
	)

	if err := r.pool.QueryRow(ctx, q, id).Scan(
		&job.ID,
		&job.URL,
		&platform,
		&stateText,
		&job.Priority,
		&optsBytes,
		&resultBytes,
		&kindText,
		&job.ErrorMessage,
		&job.ComponentsCount,
		&job.CancelRequested,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	job.State = entity.JobState(stateText)
	if platform != nil {
		job.Platform = entity.PlatformVariant(*platform)
	}
	if kindText != nil {
		k := entity.ErrorKind(*kindText)
		job.ErrorKind = &k
	}
	if len(optsBytes) > 0 {
		_ = json.Unmarshal(optsBytes, &job.Options)
	}
	if resultBytes != nil {
		job.Result = json.RawMessage(resultBytes)
	}

	return &job, nil
}

// Claim atomically moves a queued job to running. Exactly one caller
// succeeds for a given job; everyone else gets ErrNotClaimable.
func (r *JobRepository) Claim(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE jobs SET state='running', updated_at=now() WHERE id=$1 AND state='queued';`

	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotClaimable
	}
	return nil
}

func (r *JobRepository) SetPlatform(ctx context.Context, id uuid.UUID, platform entity.PlatformVariant) error {
	const q = `UPDATE jobs SET platform=$2, updated_at=now() WHERE id=$1;`

	tag, err := r.pool.Exec(ctx, q, id, string(platform))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *JobRepository) SetSucceeded(ctx context.Context, id uuid.UUID, result json.RawMessage, components int) error {
	if len(result) == 0 {
		result = json.RawMessage(`{}`)
	}
	const q = `
UPDATE jobs
SET state='succeeded', result=$2, components_count=$3,
    error_kind=NULL, error_message=NULL,
    completed_at=now(), updated_at=now()
WHERE id=$1 AND state='running';
`

	tag, err := r.pool.Exec(ctx, q, id, result, components)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *JobRepository) SetFailed(ctx context.Context, id uuid.UUID, kind entity.ErrorKind, msg string) error {
	const q = `
UPDATE jobs
SET state='failed', error_kind=$2, error_message=$3,
    completed_at=now(), updated_at=now()
WHERE id=$1 AND state='running';
`

	tag, err := r.pool.Exec(ctx, q, id, string(kind), msg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCancelled finalizes a job as cancelled. Allowed from queued (never
// claimed) and from running (cooperative cancel at a stage boundary).
func (r *JobRepository) SetCancelled(ctx context.Context, id uuid.UUID) error {
	const q = `
UPDATE jobs
SET state='cancelled', result=NULL, completed_at=now(), updated_at=now()
WHERE id=$1 AND state IN ('queued','running');
`

	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RequestCancel flags a non-terminal job for cooperative cancellation.
func (r *JobRepository) RequestCancel(ctx context.Context, id uuid.UUID) error {
	const q = `
UPDATE jobs SET cancel_requested=TRUE, updated_at=now()
WHERE id=$1 AND state IN ('queued','running');
`

	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FailStaleRunning fails every running job not touched since cutoff.
// A worker that dies mid-pipeline never finalizes its row; this sweep
// gives the job a terminal state so status queries stop reporting a
// phantom run. The cutoff must be generous enough to outlast the
// longest legitimate pipeline run including retries.
func (r *JobRepository) FailStaleRunning(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `
UPDATE jobs
SET state='failed', error_kind='internal',
    error_message='worker lost before finishing the job',
    completed_at=now(), updated_at=now()
WHERE state='running' AND updated_at < $1;
`

	tag, err := r.pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CancelRequested reads the cancellation flag; the processor polls it
// between pipeline stages.
func (r *JobRepository) CancelRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `SELECT cancel_requested FROM jobs WHERE id=$1;`

	var requested bool
	if err := r.pool.QueryRow(ctx, q, id).Scan(&requested); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, err
	}
	return requested, nil
}

// List returns most recent jobs up to limit, for the API listing endpoint.
func (r *JobRepository) List(ctx context.Context, limit int) ([]entity.Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	const q = `
SELECT id, url, platform, state, priority, created_at, updated_at, completed_at
FROM jobs
ORDER BY created_at DESC
LIMIT $1;
`

	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []entity.Job
	for rows.Next() {
		var (
			job       entity.Job
			platform  *string
			stateText string
			createdAt time.Time
		)
		if err := rows.Scan(&job.ID, &job.URL, &platform, &stateText, &job.Priority, &createdAt, &job.UpdatedAt, &job.CompletedAt); err != nil {
			return nil, err
		}
		job.State = entity.JobState(stateText)
		job.CreatedAt = createdAt
		if platform != nil {
			job.Platform = entity.PlatformVariant(*platform)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
