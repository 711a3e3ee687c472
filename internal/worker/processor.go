package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"reactify-service/internal/entity"
	"reactify-service/internal/repository/postgresql"
	"reactify-service/internal/scraper"
)

// JobRepo is the store port the processor drives the state machine
// through. Claim must be atomic: one worker per job.
type JobRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	Claim(ctx context.Context, id uuid.UUID) error
	SetPlatform(ctx context.Context, id uuid.UUID, platform entity.PlatformVariant) error
	SetSucceeded(ctx context.Context, id uuid.UUID, result json.RawMessage, components int) error
	SetFailed(ctx context.Context, id uuid.UUID, kind entity.ErrorKind, msg string) error
	SetCancelled(ctx context.Context, id uuid.UUID) error
	CancelRequested(ctx context.Context, id uuid.UUID) (bool, error)
}

// Detector classifies a URL plus HTML sample into a platform variant.
type Detector func(rawURL, htmlSample string) (entity.PlatformVariant, error)

// AdapterSet resolves the scraper adapter for a variant.
type AdapterSet interface {
	ForVariant(v entity.PlatformVariant) scraper.Adapter
	Generic() scraper.Adapter
}

// Normalizer produces the intermediate representation.
type Normalizer interface {
	Normalize(page *entity.RawPage, variant entity.PlatformVariant) (*entity.NormalizedContent, error)
}

// Converter invokes the AI conversion service once.
type Converter interface {
	Convert(ctx context.Context, content *entity.NormalizedContent, opts entity.ConversionOptions) (*entity.ConversionResult, error)
}

// Publisher pushes state-change events; nil-safe via Processor.publish.
type Publisher interface {
	Publish(ctx context.Context, event entity.JobEvent) error
}

const (
	// maxRetries bounds retryable stage failures per job.
	maxRetries  = 2
	baseBackoff = 2 * time.Second
)

// errCancelled aborts the pipeline between stages.
var errCancelled = errors.New("cancel requested")

type Processor struct {
	repo      JobRepo
	detect    Detector
	adapters  AdapterSet
	norm      Normalizer
	converter Converter
	notifier  Publisher
}

func NewProcessor(repo JobRepo, detect Detector, adapters AdapterSet, norm Normalizer, converter Converter, notifier Publisher) *Processor {
	return &Processor{
		repo:      repo,
		detect:    detect,
		adapters:  adapters,
		norm:      norm,
		converter: converter,
		notifier:  notifier,
	}
}

// Process claims the job and runs detect -> scrape -> normalize ->
// convert, finalizing the job in exactly one terminal state. A lost
// claim race is not an error.
func (p *Processor) Process(ctx context.Context, jobID string) error {
	start := time.Now()

	id, err := uuid.Parse(jobID)
	if err != nil {
		log.Printf("[worker] job_id=%s parse_error=%v", jobID, err)
		return err
	}

	if err := p.repo.Claim(ctx, id); err != nil {
		if errors.Is(err, postgresql.ErrNotClaimable) {
			log.Printf("[worker] job_id=%s already claimed or terminal", id)
			return nil
		}
		return err
	}
	p.publish(ctx, id, entity.StateRunning, nil)

	job, err := p.repo.GetByID(ctx, id)
	if err != nil {
		log.Printf("[worker] job_id=%s get_job error=%v", id, err)
		return err
	}

	log.Printf("[worker] job_id=%s url=%s state=running", id, job.URL)

	result, components, pipeErr := p.runPipeline(ctx, job)

	switch {
	case errors.Is(pipeErr, errCancelled):
		if err := p.repo.SetCancelled(ctx, id); err != nil {
			return err
		}
		p.publish(ctx, id, entity.StateCancelled, nil)
		log.Printf("[worker] job_id=%s state=cancelled duration_ms=%d", id, time.Since(start).Milliseconds())
		return nil

	case pipeErr != nil:
		kind := entity.KindOf(pipeErr)
		if err := p.repo.SetFailed(ctx, id, kind, pipeErr.Error()); err != nil {
			return err
		}
		k := kind
		p.publish(ctx, id, entity.StateFailed, &k)
		log.Printf("[worker] job_id=%s state=failed kind=%s duration_ms=%d error=%v",
			id, kind, time.Since(start).Milliseconds(), pipeErr)
		return pipeErr

	default:
		if err := p.repo.SetSucceeded(ctx, id, result, components); err != nil {
			return err
		}
		p.publish(ctx, id, entity.StateSucceeded, nil)
		log.Printf("[worker] job_id=%s state=succeeded components=%d duration_ms=%d",
			id, components, time.Since(start).Milliseconds())
		return nil
	}
}

// runPipeline executes the stages strictly in sequence, checking the
// cancellation flag at each stage boundary.
func (p *Processor) runPipeline(ctx context.Context, job *entity.Job) (json.RawMessage, int, error) {
	// detect
	variant, err := p.detect(job.URL, "")
	if err != nil {
		return nil, 0, entity.NewPipelineError(entity.StageDetect, entity.ErrInvalidInput, err)
	}
	if err := p.repo.SetPlatform(ctx, job.ID, variant); err != nil {
		return nil, 0, err
	}

	if err := p.checkCancel(ctx, job.ID); err != nil {
		return nil, 0, err
	}

	// scrape
	page, err := p.fetchWithFallback(ctx, job.URL, variant)
	if err != nil {
		return nil, 0, err
	}

	// refine detection with the fetched HTML; the URL alone often says
	// nothing for custom domains
	if variant == entity.PlatformGeneric {
		if refined, derr := p.detect(job.URL, page.HTML); derr == nil && refined != entity.PlatformGeneric {
			variant = refined
			if err := p.repo.SetPlatform(ctx, job.ID, variant); err != nil {
				return nil, 0, err
			}
		}
	}

	if err := p.checkCancel(ctx, job.ID); err != nil {
		return nil, 0, err
	}

	// normalize
	content, err := p.norm.Normalize(page, variant)
	if err != nil {
		return nil, 0, err
	}

	if err := p.checkCancel(ctx, job.ID); err != nil {
		return nil, 0, err
	}

	// convert
	conv, err := p.convertWithRetry(ctx, job.ID, content, job.Options)
	if err != nil {
		return nil, 0, err
	}

	raw, err := json.Marshal(conv)
	if err != nil {
		return nil, 0, entity.NewPipelineError(entity.StageConvert, entity.ErrInternal, err)
	}
	return raw, len(conv.Components), nil
}

// fetchWithFallback retries retryable fetch errors within the budget and
// falls back to the generic adapter once on UnsupportedStructure.
func (p *Processor) fetchWithFallback(ctx context.Context, url string, variant entity.PlatformVariant) (*entity.RawPage, error) {
	adapter := p.adapters.ForVariant(variant)

	page, err := p.fetchWithRetry(ctx, adapter, url)
	if err != nil && entity.KindOf(err) == entity.ErrUnsupportedStructure && variant != entity.PlatformGeneric {
		log.Printf("[worker] url=%s adapter=%s unsupported structure, falling back to generic", url, variant)
		page, err = p.fetchWithRetry(ctx, p.adapters.Generic(), url)
	}
	return page, err
}

func (p *Processor) fetchWithRetry(ctx context.Context, adapter scraper.Adapter, url string) (*entity.RawPage, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		page, err := adapter.Fetch(ctx, url)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if !entity.KindOf(err).Retryable() {
			return nil, err
		}
		log.Printf("[worker] url=%s fetch attempt=%d retryable error=%v", url, attempt+1, err)
	}
	return nil, lastErr
}

func (p *Processor) convertWithRetry(ctx context.Context, jobID uuid.UUID, content *entity.NormalizedContent, opts entity.ConversionOptions) (*entity.ConversionResult, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
			if err := p.checkCancel(ctx, jobID); err != nil {
				return nil, err
			}
		}
		result, err := p.converter.Convert(ctx, content, opts)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !entity.KindOf(err).Retryable() {
			return nil, err
		}
		log.Printf("[worker] job_id=%s convert attempt=%d retryable error=%v", jobID, attempt+1, err)
	}
	return nil, lastErr
}

func (p *Processor) checkCancel(ctx context.Context, id uuid.UUID) error {
	requested, err := p.repo.CancelRequested(ctx, id)
	if err != nil {
		return err
	}
	if requested {
		return errCancelled
	}
	return nil
}

func (p *Processor) publish(ctx context.Context, id uuid.UUID, state entity.JobState, kind *entity.ErrorKind) {
	if p.notifier == nil {
		return
	}
	_ = p.notifier.Publish(ctx, entity.JobEvent{JobID: id.String(), State: state, ErrorKind: kind})
}

func sleepBackoff(ctx context.Context, attempt int) error {
	backoff := baseBackoff << (attempt - 1)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
		return nil
	}
}
