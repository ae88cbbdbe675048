// Package model defines the core domain types shared across redtick:
// issues and their metadata as fetched from the remote tracker, and the
// timer state snapshot owned by the tracking controller.
package model

import "fmt"

// Issue is a unit of work tracked in the remote system.
// It is immutable once fetched, except for ActivityID and StatusID which
// the controller updates locally after a successful remote update.
type Issue struct {
	ID          int    `json:"id"`
	Subject     string `json:"subject"`
	Description string `json:"description,omitempty"`
	ActivityID  int    `json:"activity_id,omitempty"`
	StatusID    int    `json:"status_id,omitempty"`
}

// Activity is a category of work attached to a time entry, one of a small
// enumerated set fetched from the remote system.
type Activity struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// IssueStatus is a workflow state of an issue.
type IssueStatus struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// TimerState is an immutable snapshot of the tracking state machine.
// Invariant: Running implies ActiveIssue != nil. ElapsedSeconds is always
// >= 0 and resets to 0 exactly when a save succeeds or is discarded.
type TimerState struct {
	Running        bool
	ElapsedSeconds int
	ActiveIssue    *Issue
}

// HasIssue reports whether an issue is currently active.
func (s TimerState) HasIssue() bool {
	return s.ActiveIssue != nil
}

// Clock renders the elapsed time as hh:mm:ss.
func (s TimerState) Clock() string {
	h := s.ElapsedSeconds / 3600
	m := (s.ElapsedSeconds % 3600) / 60
	sec := s.ElapsedSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}

// Severity classifies a user-facing message.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// ExitChoice is the outcome of the exit confirmation shown when the user
// quits while the timer is running.
type ExitChoice int

const (
	// ExitCancel aborts the exit and keeps the timer running.
	ExitCancel ExitChoice = iota
	// ExitSave saves the tracked time before exiting.
	ExitSave
	// ExitDiscard throws away the tracked time and exits.
	ExitDiscard
)
