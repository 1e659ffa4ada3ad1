package models

import "time"

// ToolCall is one audited dispatch: the argument set as JSON, the full
// untruncated result, and whether it was rejected as invalid.
type ToolCall struct {
	ID        int64
	RunID     int64
	Turn      int
	Tool      string
	Arguments string
	Result    string
	IsError   bool
	CreatedAt time.Time
}
