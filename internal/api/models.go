// Package api exposes history updates, snapshots and background video
// renders over HTTP.
package api

import (
	"time"

	"trend-reel/internal/history"
)

// JobID uniquely identifies a render job.
type JobID string

// JobStatus is the lifecycle state of a render job.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job is one requested render of a group's video.
type Job struct {
	ID       JobID     `json:"job_id"`
	Group    string    `json:"group"`
	Date     string    `json:"date"`
	Status   JobStatus `json:"status"`
	Output   string    `json:"output,omitempty"`
	Silent   bool      `json:"silent,omitempty"`
	Error    string    `json:"error,omitempty"`
	Created  time.Time `json:"created_at"`
	Finished time.Time `json:"finished_at,omitzero"`
}

// UpdateRequest is the body of POST /groups/{group}/updates.
type UpdateRequest struct {
	Date  string               `json:"date"`
	Items []history.RankedItem `json:"items"`
}

// UpdateResponse reports the retained dates after an update.
type UpdateResponse struct {
	Group string   `json:"group"`
	Dates []string `json:"dates"`
}

// RenderRequest is the body of POST /groups/{group}/renders.
type RenderRequest struct {
	Date string `json:"date"`
}

// ItemSummary is one tracked item without its minute curves.
type ItemSummary struct {
	Title    string         `json:"title"`
	DailyRaw map[string]int `json:"daily_raw"`
}

// SnapshotSummary is the body of GET /groups/{group}/snapshot.
type SnapshotSummary struct {
	Group string        `json:"group"`
	Dates []string      `json:"dates"`
	Items []ItemSummary `json:"items"`
}
