package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobState string

const (
	StateQueued    JobState = "queued"
	StateRunning   JobState = "running"
	StateSucceeded JobState = "succeeded"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Terminal reports whether no further transition is allowed from s.
func (s JobState) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	}
	return false
}

// ConversionOptions are caller hints forwarded to the AI conversion step.
type ConversionOptions struct {
	Framework  string `json:"framework,omitempty"`
	Styling    string `json:"styling,omitempty"`
	TypeScript *bool  `json:"typescript,omitempty"`
}

func (o ConversionOptions) WithDefaults() ConversionOptions {
	if o.Framework == "" {
		o.Framework = "nextjs"
	}
	if o.Styling == "" {
		o.Styling = "css_modules"
	}
	if o.TypeScript == nil {
		t := true
		o.TypeScript = &t
	}
	return o
}

type Job struct {
	ID              uuid.UUID         `json:"id"`
	URL             string            `json:"url"`
	Platform        PlatformVariant   `json:"platform,omitempty"`
	State           JobState          `json:"state"`
	Priority        int               `json:"priority"`
	Options         ConversionOptions `json:"options"`
	Result          json.RawMessage   `json:"result,omitempty"`
	ErrorKind       *ErrorKind        `json:"error_kind,omitempty"`
	ErrorMessage    *string           `json:"error_message,omitempty"`
	ComponentsCount int               `json:"components_count"`
	CancelRequested bool              `json:"-"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}
