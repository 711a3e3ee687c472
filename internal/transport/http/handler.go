package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"reactify-service/internal/entity"
	"reactify-service/internal/service"
)

type Handler struct {
	jobSvc *service.JobService
	events EventSource
}

// EventSource streams state changes for a job (SSE backing).
type EventSource interface {
	Subscribe(ctx context.Context, jobID string) (<-chan entity.JobEvent, error)
}

func NewHandler(jobSvc *service.JobService, events EventSource) *Handler {
	return &Handler{jobSvc: jobSvc, events: events}
}

type submitJobDTO struct {
	URL      string                    `json:"url"`
	Priority *int                      `json:"priority,omitempty"` // 0=low,1=normal,2=high (nil => 1)
	Options  *entity.ConversionOptions `json:"options,omitempty"`
}

type submitJobResp struct {
	ID string `json:"id"`
}

type jobResp struct {
	ID              string                   `json:"id"`
	URL             string                   `json:"url"`
	Platform        string                   `json:"platform,omitempty"`
	State           entity.JobState          `json:"state"`
	Priority        int                      `json:"priority"`
	Options         entity.ConversionOptions `json:"options"`
	ErrorKind       *entity.ErrorKind        `json:"error_kind,omitempty"`
	ErrorMessage    *string                  `json:"error_message,omitempty"`
	ComponentsCount int                      `json:"components_count"`
	CreatedAt       string                   `json:"created_at"`
	UpdatedAt       string                   `json:"updated_at"`
	CompletedAt     string                   `json:"completed_at,omitempty"`
}

// SubmitJob godoc
// @Summary Submit a conversion job
// @Description Creates the job record (queued) and enqueues it for background processing.
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body submitJobDTO true "job payload (priority: 0=low,1=normal,2=high)"
// @Success 201 {object} submitJobResp
// @Failure 400 {object} apiError
// @Failure 500 {object} apiError
// @Router /jobs [post]
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var dto submitJobDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	priority := 1
	if dto.Priority != nil {
		priority = *dto.Priority
	}
	var opts entity.ConversionOptions
	if dto.Options != nil {
		opts = *dto.Options
	}

	id, err := h.jobSvc.Submit(r.Context(), service.SubmitRequest{
		URL:      dto.URL,
		Priority: priority,
		Options:  opts,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidURL) {
			writeErr(w, http.StatusBadRequest, "invalid url")
			return
		}
		writeErr(w, http.StatusInternalServerError, "submit failed")
		return
	}

	writeJSON(w, http.StatusCreated, submitJobResp{ID: id.String()})
}

// GetJob godoc
// @Summary Get job by id
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} jobResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toJobResp(job))
}

// ListJobs godoc
// @Summary List recent jobs
// @Tags jobs
// @Produce json
// @Success 200 {array} jobResp
// @Router /jobs [get]
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobSvc.List(r.Context(), 50)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "list failed")
		return
	}

	resp := make([]jobResp, 0, len(jobs))
	for i := range jobs {
		resp = append(resp, toJobResp(&jobs[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetJobResult godoc
// @Summary Get the conversion result of a succeeded job
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /jobs/{id}/result [get]
func (h *Handler) GetJobResult(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupJob(w, r)
	if !ok {
		return
	}
	if job.State != entity.StateSucceeded {
		writeErr(w, http.StatusConflict, "job not succeeded")
		return
	}

	// raw result JSON, no re-encoding
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(job.Result)
}

// CancelJob godoc
// @Summary Cancel a job
// @Description Queued jobs are cancelled immediately; running jobs cooperatively at the next stage boundary.
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 202 {object} map[string]string
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /jobs/{id}/cancel [post]
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.jobSvc.Cancel(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrJobTerminal):
			writeErr(w, http.StatusConflict, "job already terminal")
		default:
			writeErr(w, http.StatusNotFound, "job not found")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// JobEvents godoc
// @Summary Stream job state changes (SSE)
// @Tags jobs
// @Produce text/event-stream
// @Param id path string true "job id (uuid)"
// @Router /jobs/{id}/events [get]
func (h *Handler) JobEvents(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupJob(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeErr(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Subscribe before the snapshot: a terminal event published between
	// the two would otherwise be lost, leaving the client hanging. The
	// state is re-read after subscribing for the same reason.
	var events <-chan entity.JobEvent
	if !job.State.Terminal() {
		var err error
		events, err = h.events.Subscribe(r.Context(), job.ID.String())
		if err != nil {
			writeErr(w, http.StatusInternalServerError, "subscribe failed")
			return
		}
		if cur, err := h.jobSvc.Get(r.Context(), job.ID); err == nil {
			job = cur
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent(w, entity.JobEvent{JobID: job.ID.String(), State: job.State, ErrorKind: job.ErrorKind})
	flusher.Flush()
	if job.State.Terminal() {
		return
	}

	for ev := range events {
		writeEvent(w, ev)
		flusher.Flush()
		if ev.State.Terminal() {
			return
		}
	}
}

// ListPlatforms godoc
// @Summary List supported platform variants
// @Tags platforms
// @Produce json
// @Success 200 {array} string
// @Router /platforms [get]
func (h *Handler) ListPlatforms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, entity.Platforms())
}

func (h *Handler) lookupJob(w http.ResponseWriter, r *http.Request) (*entity.Job, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}

	job, err := h.jobSvc.Get(r.Context(), id)
	if err != nil {
		writeErr(w, http.StatusNotFound, "job not found")
		return nil, false
	}
	return job, true
}

func toJobResp(j *entity.Job) jobResp {
	resp := jobResp{
		ID:              j.ID.String(),
		URL:             j.URL,
		Platform:        string(j.Platform),
		State:           j.State,
		Priority:        j.Priority,
		Options:         j.Options,
		ErrorKind:       j.ErrorKind,
		ErrorMessage:    j.ErrorMessage,
		ComponentsCount: j.ComponentsCount,
		CreatedAt:       j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       j.UpdatedAt.Format(time.RFC3339),
	}
	if j.CompletedAt != nil {
		resp.CompletedAt = j.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

func writeEvent(w http.ResponseWriter, ev entity.JobEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n\n"))
}
