package controller

import (
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-news-desk/internal/domain"
)

// Status is the fetch state of the controller.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSucceeded
	StatusFailed
)

var statusNames = map[Status]string{
	StatusIdle:      "idle",
	StatusLoading:   "loading",
	StatusSucceeded: "succeeded",
	StatusFailed:    "failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText renders the status by name in JSON payloads.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a read-only copy of the controller state.
type Snapshot struct {
	Query    string           `json:"query"`
	Status   Status           `json:"status"`
	Articles []domain.Article `json:"articles"`
	// Err is the failure behind StatusFailed. Articles still hold the last good result set.
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
	// Issued is the newest fetch generation; Completed is the one that produced Status.
	Issued    uint64    `json:"issued_generation"`
	Completed uint64    `json:"completed_generation"`
	UpdatedAt time.Time `json:"updated_at"`
	Disposed  bool      `json:"disposed"`
}

// Loading reports whether a fetch is in flight.
func (s Snapshot) Loading() bool { return s.Status == StatusLoading }
