package entity

// JobEvent is a state-change notification pushed to subscribers.
type JobEvent struct {
	JobID     string     `json:"job_id"`
	State     JobState   `json:"state"`
	ErrorKind *ErrorKind `json:"error_kind,omitempty"`
}
