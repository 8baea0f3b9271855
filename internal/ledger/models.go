package ledger

import "time"

// Status is the latest outcome recorded for a video.
type Status string

const (
	StatusRunning  Status = "running"
	StatusDetected Status = "detected"
	StatusFailed   Status = "failed"
	StatusSkipped  Status = "skipped"
)

// AllStatuses lists statuses in display order.
var AllStatuses = []Status{StatusRunning, StatusDetected, StatusFailed, StatusSkipped}

// ParseStatus validates a user-supplied status name.
func ParseStatus(value string) (Status, bool) {
	for _, status := range AllStatuses {
		if string(status) == value {
			return status, true
		}
	}
	return "", false
}

// InterruptedDetail is stored on videos left running by a previous process.
const InterruptedDetail = "interrupted before completion"

// Run is one batch invocation.
type Run struct {
	ID           string     `json:"id"`
	Command      string     `json:"command"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	VideosTotal  int        `json:"videos_total"`
	VideosFailed int        `json:"videos_failed"`
}

// Video is the ledger row for one catalog video.
type Video struct {
	VideoID     string     `json:"video_id"`
	Status      Status     `json:"status"`
	RunID       string     `json:"run_id,omitempty"`
	RangeCount  int        `json:"range_count"`
	FailureKind string     `json:"failure_kind,omitempty"`
	Detail      string     `json:"detail,omitempty"`
	Attempts    int        `json:"attempts"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Summary counts videos per status.
type Summary struct {
	Total  int            `json:"total"`
	Counts map[Status]int `json:"counts"`
}
