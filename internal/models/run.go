package models

import "time"

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

type Run struct {
	ID          int64
	CreatedAt   time.Time
	CompletedAt *time.Time
	ProjectDir  string
	Model       string
	Status      RunStatus
	Turns       int
	Message     string
}
