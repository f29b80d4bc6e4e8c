package model

import "time"

// SessionStatus describes how a crawl session ended.
type SessionStatus string

const (
	// SessionRunning is stored while the crawl is in progress.
	SessionRunning SessionStatus = "running"
	// SessionCompleted means the frontier, depth or budget was exhausted.
	SessionCompleted SessionStatus = "completed"
	// SessionCancelled means the run was interrupted.
	SessionCancelled SessionStatus = "cancelled"
	// SessionFailed means the run aborted, usually on backend initialization.
	SessionFailed SessionStatus = "failed"
)

// Session is the persisted summary of one crawl run.
type Session struct {
	ID         string        `json:"id"`
	Seed       string        `json:"seed"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitzero"`
	Status     SessionStatus `json:"status"`
	Dispatched int           `json:"dispatched"`
	Results    int           `json:"results"`
}
