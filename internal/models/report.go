package models

import "time"

// ErrorKind classifies a failure for reports and retry decisions
type ErrorKind string

const (
	KindConnection    ErrorKind = "connection"     // Browser unreachable and unlaunchable, fatal to one worker
	KindNavigation    ErrorKind = "navigation"     // Timeout or transport failure, transient
	KindAuthLost      ErrorKind = "auth_lost"      // Session no longer authenticated, fatal to one worker
	KindCriticalField ErrorKind = "critical_field" // Title or body missing, retried only on a future run
	KindValidation    ErrorKind = "validation"     // Store rejected the write, defensive
	KindStore         ErrorKind = "store"          // Database unavailable
	KindUnknown       ErrorKind = "unknown"
)

// FailedKey records a key that failed permanently within one run
type FailedKey struct {
	Key  string    `json:"key"`
	Kind ErrorKind `json:"kind"`
}

// RunReport is the in-memory aggregate outcome of one coordinator invocation.
// Durable state lives in the store; the report is never persisted.
type RunReport struct {
	RunID      string        `json:"run_id"`
	Mode       string        `json:"mode"`
	Workers    int           `json:"workers"`
	Processed  int           `json:"processed"`
	Succeeded  int           `json:"succeeded"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Collected  int           `json:"collected"` // New keys inserted (collect mode)
	Elapsed    time.Duration `json:"elapsed"`
	FailedKeys []FailedKey   `json:"failed_keys"`
}

// ProgressUpdate is published after every terminal item transition.
// Processed increases monotonically so an observer can compute rate and ETA
// without polling worker state.
type ProgressUpdate struct {
	WorkerID      int       `json:"worker_id"`
	PartitionSize int       `json:"partition_size"`
	Processed     int       `json:"processed"`
	Succeeded     int       `json:"succeeded"`
	Skipped       int       `json:"skipped"`
	Failed        int       `json:"failed"`
	Key           string    `json:"key"`
	Kind          ErrorKind `json:"kind,omitempty"`
}

// CollectProgress is published after each listing scroll iteration
type CollectProgress struct {
	Iteration  int           `json:"iteration"`
	NewLinks   int           `json:"new_links"`
	TotalLinks int           `json:"total_links"`
	Elapsed    time.Duration `json:"elapsed"`
}
