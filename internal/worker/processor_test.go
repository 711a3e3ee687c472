package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"reactify-service/internal/entity"
	"reactify-service/internal/repository/postgresql"
	"reactify-service/internal/scraper"
)

// The worker binary hands the processor a *scraper.Set directly.
var _ AdapterSet = (*scraper.Set)(nil)

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*entity.Job

	result     json.RawMessage
	components int
	errorKind  entity.ErrorKind
	errorMsg   string
}

func newFakeJobRepo(jobs ...*entity.Job) *fakeJobRepo {
	r := &fakeJobRepo{jobs: map[uuid.UUID]*entity.Job{}}
	for _, j := range jobs {
		r.jobs[j.ID] = j
	}
	return r
}

func (r *fakeJobRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, postgresql.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *fakeJobRepo) Claim(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.State != entity.StateQueued {
		return postgresql.ErrNotClaimable
	}
	j.State = entity.StateRunning
	return nil
}

func (r *fakeJobRepo) SetPlatform(_ context.Context, id uuid.UUID, platform entity.PlatformVariant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id].Platform = platform
	return nil
}

func (r *fakeJobRepo) SetSucceeded(_ context.Context, id uuid.UUID, result json.RawMessage, components int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id].State = entity.StateSucceeded
	r.result = result
	r.components = components
	return nil
}

func (r *fakeJobRepo) SetFailed(_ context.Context, id uuid.UUID, kind entity.ErrorKind, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id].State = entity.StateFailed
	r.errorKind = kind
	r.errorMsg = msg
	return nil
}

func (r *fakeJobRepo) SetCancelled(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id].State = entity.StateCancelled
	return nil
}

func (r *fakeJobRepo) CancelRequested(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id].CancelRequested, nil
}

func (r *fakeJobRepo) requestCancel(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id].CancelRequested = true
}

func (r *fakeJobRepo) state(id uuid.UUID) entity.JobState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id].State
}

type stubAdapter struct {
	variant entity.PlatformVariant
	page    *entity.RawPage
	err     error
	calls   atomic.Int32
}

func (a *stubAdapter) Variant() entity.PlatformVariant { return a.variant }

func (a *stubAdapter) Fetch(context.Context, string) (*entity.RawPage, error) {
	a.calls.Add(1)
	if a.err != nil {
		return nil, a.err
	}
	return a.page, nil
}

type stubSet struct {
	adapter scraper.Adapter
	generic scraper.Adapter
}

func (s *stubSet) ForVariant(entity.PlatformVariant) scraper.Adapter { return s.adapter }
func (s *stubSet) Generic() scraper.Adapter                          { return s.generic }

type stubNormalizer struct {
	content *entity.NormalizedContent
	err     error
	onCall  func()
}

func (n *stubNormalizer) Normalize(*entity.RawPage, entity.PlatformVariant) (*entity.NormalizedContent, error) {
	if n.onCall != nil {
		n.onCall()
	}
	return n.content, n.err
}

type stubConverter struct {
	result *entity.ConversionResult
	err    error
	calls  atomic.Int32
}

func (c *stubConverter) Convert(context.Context, *entity.NormalizedContent, entity.ConversionOptions) (*entity.ConversionResult, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []entity.JobEvent
}

func (r *eventRecorder) Publish(_ context.Context, event entity.JobEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) states() []entity.JobState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.JobState, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.State)
	}
	return out
}

func detectShopify(string, string) (entity.PlatformVariant, error) {
	return entity.PlatformShopify, nil
}

func queuedJob(url string) *entity.Job {
	return &entity.Job{
		ID:      uuid.New(),
		URL:     url,
		State:   entity.StateQueued,
		Options: entity.ConversionOptions{}.WithDefaults(),
	}
}

func storefrontContent() *entity.NormalizedContent {
	return &entity.NormalizedContent{
		URL:      "https://example.myshopify.com/products/x",
		Platform: entity.PlatformShopify,
		Elements: []entity.Element{{Tag: "section", Role: entity.RoleHero, Text: "Demo"}},
	}
}

func TestProcessor_ShopifyPageSucceedsWithResultAttached(t *testing.T) {
	job := queuedJob("https://example.myshopify.com/products/x")
	repo := newFakeJobRepo(job)
	events := &eventRecorder{}

	heroTSX := "export default function Hero() { return <section>Demo</section>; }"
	adapter := &stubAdapter{variant: entity.PlatformShopify, page: &entity.RawPage{URL: job.URL, HTML: "<html></html>"}}
	proc := NewProcessor(repo, detectShopify,
		&stubSet{adapter: adapter},
		&stubNormalizer{content: storefrontContent()},
		&stubConverter{result: &entity.ConversionResult{
			Components: map[string]entity.GeneratedComponent{
				"Hero": {TSX: heroTSX, CSS: ".hero {}"},
			},
			Index: "export { default as Hero } from './Hero';",
		}},
		events)

	if err := proc.Process(context.Background(), job.ID.String()); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if got := repo.state(job.ID); got != entity.StateSucceeded {
		t.Fatalf("state = %s, want %s", got, entity.StateSucceeded)
	}
	if repo.components != 1 {
		t.Errorf("components = %d, want 1", repo.components)
	}
	if repo.jobs[job.ID].Platform != entity.PlatformShopify {
		t.Errorf("platform = %s, want %s", repo.jobs[job.ID].Platform, entity.PlatformShopify)
	}

	var stored entity.ConversionResult
	if err := json.Unmarshal(repo.result, &stored); err != nil {
		t.Fatalf("stored result is not valid JSON: %v", err)
	}
	if stored.Components["Hero"].TSX != heroTSX {
		t.Errorf("stored TSX = %q, want the converter output verbatim", stored.Components["Hero"].TSX)
	}

	states := events.states()
	if len(states) != 2 || states[0] != entity.StateRunning || states[1] != entity.StateSucceeded {
		t.Errorf("published states = %v, want [running succeeded]", states)
	}
}

func TestProcessor_RetryableFetchErrorExhaustsBudget(t *testing.T) {
	if testing.Short() {
		t.Skip("waits through backoff")
	}

	job := queuedJob("https://example.myshopify.com")
	repo := newFakeJobRepo(job)

	adapter := &stubAdapter{
		variant: entity.PlatformShopify,
		err:     entity.NewPipelineError(entity.StageScrape, entity.ErrNetwork, errors.New("connection reset")),
	}
	conv := &stubConverter{}
	proc := NewProcessor(repo, detectShopify,
		&stubSet{adapter: adapter, generic: adapter},
		&stubNormalizer{content: storefrontContent()}, conv, nil)

	err := proc.Process(context.Background(), job.ID.String())
	if err == nil {
		t.Fatal("Process() error = nil, want pipeline error")
	}

	if got := repo.state(job.ID); got != entity.StateFailed {
		t.Fatalf("state = %s, want %s", got, entity.StateFailed)
	}
	if repo.errorKind != entity.ErrNetwork {
		t.Errorf("error kind = %s, want %s", repo.errorKind, entity.ErrNetwork)
	}
	if got := adapter.calls.Load(); got != 3 {
		t.Errorf("fetch calls = %d, want initial attempt plus 2 retries", got)
	}
	if conv.calls.Load() != 0 {
		t.Errorf("converter was called after scrape failure")
	}
}

func TestProcessor_NonRetryableConvertErrorFailsImmediately(t *testing.T) {
	job := queuedJob("https://example.myshopify.com")
	repo := newFakeJobRepo(job)

	conv := &stubConverter{
		err: entity.NewPipelineError(entity.StageConvert, entity.ErrInvalidResponse, errors.New("no components in response")),
	}
	adapter := &stubAdapter{variant: entity.PlatformShopify, page: &entity.RawPage{URL: job.URL}}
	proc := NewProcessor(repo, detectShopify,
		&stubSet{adapter: adapter},
		&stubNormalizer{content: storefrontContent()}, conv, nil)

	if err := proc.Process(context.Background(), job.ID.String()); err == nil {
		t.Fatal("Process() error = nil, want pipeline error")
	}

	if got := repo.state(job.ID); got != entity.StateFailed {
		t.Fatalf("state = %s, want %s", got, entity.StateFailed)
	}
	if repo.errorKind != entity.ErrInvalidResponse {
		t.Errorf("error kind = %s, want %s", repo.errorKind, entity.ErrInvalidResponse)
	}
	if got := conv.calls.Load(); got != 1 {
		t.Errorf("converter calls = %d, want exactly 1 for a non-retryable error", got)
	}
}

func TestProcessor_CancelBetweenNormalizeAndConvert(t *testing.T) {
	job := queuedJob("https://example.myshopify.com")
	repo := newFakeJobRepo(job)
	events := &eventRecorder{}

	conv := &stubConverter{result: &entity.ConversionResult{}}
	norm := &stubNormalizer{content: storefrontContent()}
	norm.onCall = func() { repo.requestCancel(job.ID) }

	adapter := &stubAdapter{variant: entity.PlatformShopify, page: &entity.RawPage{URL: job.URL}}
	proc := NewProcessor(repo, detectShopify, &stubSet{adapter: adapter}, norm, conv, events)

	if err := proc.Process(context.Background(), job.ID.String()); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if got := repo.state(job.ID); got != entity.StateCancelled {
		t.Fatalf("state = %s, want %s", got, entity.StateCancelled)
	}
	if conv.calls.Load() != 0 {
		t.Errorf("converter was called after a cancel request")
	}
	if repo.result != nil {
		t.Errorf("a result was stored on a cancelled job")
	}

	states := events.states()
	if len(states) != 2 || states[1] != entity.StateCancelled {
		t.Errorf("published states = %v, want [running cancelled]", states)
	}
}

func TestProcessor_FallsBackToGenericOnUnsupportedStructure(t *testing.T) {
	job := queuedJob("https://example.myshopify.com")
	repo := newFakeJobRepo(job)

	primary := &stubAdapter{
		variant: entity.PlatformShopify,
		err:     entity.NewPipelineError(entity.StageScrape, entity.ErrUnsupportedStructure, errors.New("no markers")),
	}
	generic := &stubAdapter{variant: entity.PlatformGeneric, page: &entity.RawPage{URL: job.URL, HTML: "<html></html>"}}

	proc := NewProcessor(repo, detectShopify,
		&stubSet{adapter: primary, generic: generic},
		&stubNormalizer{content: storefrontContent()},
		&stubConverter{result: &entity.ConversionResult{
			Components: map[string]entity.GeneratedComponent{"Page": {TSX: "export default () => null;"}},
		}}, nil)

	if err := proc.Process(context.Background(), job.ID.String()); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if got := repo.state(job.ID); got != entity.StateSucceeded {
		t.Fatalf("state = %s, want %s", got, entity.StateSucceeded)
	}
	if primary.calls.Load() != 1 {
		t.Errorf("primary adapter calls = %d, want 1", primary.calls.Load())
	}
	if generic.calls.Load() != 1 {
		t.Errorf("generic adapter calls = %d, want 1", generic.calls.Load())
	}
}

func TestProcessor_ClaimIsExclusive(t *testing.T) {
	job := queuedJob("https://example.myshopify.com")
	repo := newFakeJobRepo(job)

	adapter := &stubAdapter{variant: entity.PlatformShopify, page: &entity.RawPage{URL: job.URL}}
	proc := NewProcessor(repo, detectShopify,
		&stubSet{adapter: adapter},
		&stubNormalizer{content: storefrontContent()},
		&stubConverter{result: &entity.ConversionResult{
			Components: map[string]entity.GeneratedComponent{"Page": {TSX: "export default () => null;"}},
		}}, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = proc.Process(context.Background(), job.ID.String())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: Process() error = %v", i, err)
		}
	}
	if got := adapter.calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want exactly one winning worker", got)
	}
	if got := repo.state(job.ID); got != entity.StateSucceeded {
		t.Errorf("state = %s, want %s", got, entity.StateSucceeded)
	}
}

func TestProcessor_LostClaimIsNotAnError(t *testing.T) {
	job := queuedJob("https://example.myshopify.com")
	job.State = entity.StateRunning
	repo := newFakeJobRepo(job)

	adapter := &stubAdapter{variant: entity.PlatformShopify}
	proc := NewProcessor(repo, detectShopify, &stubSet{adapter: adapter},
		&stubNormalizer{}, &stubConverter{}, nil)

	if err := proc.Process(context.Background(), job.ID.String()); err != nil {
		t.Fatalf("Process() error = %v, want nil for a lost claim", err)
	}
	if adapter.calls.Load() != 0 {
		t.Errorf("pipeline ran for an unclaimable job")
	}
}
