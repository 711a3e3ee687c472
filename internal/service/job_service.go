package service

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"reactify-service/internal/entity"
)

var (
	ErrInvalidURL  = errors.New("invalid url")
	ErrJobTerminal = errors.New("job already terminal")
)

// Repository port backed by postgresql.JobRepository.
type JobRepository interface {
	Create(ctx context.Context, url string, priority int, opts entity.ConversionOptions) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	List(ctx context.Context, limit int) ([]entity.Job, error)
	RequestCancel(ctx context.Context, id uuid.UUID) error
	SetCancelled(ctx context.Context, id uuid.UUID) error
}

// Enqueue-only port so the API side does not depend on the claim half
// of the queue.
type JobQueue interface {
	Enqueue(ctx context.Context, jobID string, priority int) error
}

// EventPublisher pushes job state changes to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event entity.JobEvent) error
}

type JobService struct {
	repo     JobRepository
	queue    JobQueue
	notifier EventPublisher
}

func NewJobService(repo JobRepository, queue JobQueue, notifier EventPublisher) *JobService {
	return &JobService{repo: repo, queue: queue, notifier: notifier}
}

type SubmitRequest struct {
	URL      string
	Priority int
	Options  entity.ConversionOptions
}

// Submit validates the URL, creates the job record and enqueues its id.
// Invalid input never creates a job.
func (s *JobService) Submit(ctx context.Context, req SubmitRequest) (uuid.UUID, error) {
	u, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return uuid.Nil, ErrInvalidURL
	}

	priority := req.Priority
	if priority < 0 || priority > 2 {
		priority = 1 // normal
	}

	id, err := s.repo.Create(ctx, u.String(), priority, req.Options.WithDefaults())
	if err != nil {
		return uuid.Nil, err
	}

	if err := s.queue.Enqueue(ctx, id.String(), priority); err != nil {
		return uuid.Nil, err
	}

	s.publish(ctx, id, entity.StateQueued, nil)
	return id, nil
}

func (s *JobService) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *JobService) List(ctx context.Context, limit int) ([]entity.Job, error) {
	return s.repo.List(ctx, limit)
}

// Cancel finalizes a queued job immediately; a running job only gets the
// cancel flag and is finalized by its worker at the next stage boundary.
func (s *JobService) Cancel(ctx context.Context, id uuid.UUID) error {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		return ErrJobTerminal
	}

	if err := s.repo.RequestCancel(ctx, id); err != nil {
		return err
	}

	if job.State == entity.StateQueued {
		if err := s.repo.SetCancelled(ctx, id); err != nil {
			return err
		}
		s.publish(ctx, id, entity.StateCancelled, nil)
	}
	return nil
}

func (s *JobService) publish(ctx context.Context, id uuid.UUID, state entity.JobState, kind *entity.ErrorKind) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Publish(ctx, entity.JobEvent{JobID: id.String(), State: state, ErrorKind: kind})
}
