package tracker

import (
	"time"

	"github.com/redtick/redtick/pkg/model"
)

// DefaultMessageTimeout is how long a message should stay visible unless
// the event specifies otherwise.
const DefaultMessageTimeout = 5 * time.Second

// Event is a notification emitted by the Controller for the presentation
// layer. The concrete types below are the full set.
type Event interface {
	isEvent()
}

// StateChangedEvent carries a fresh TimerState snapshot. Emitted on every
// transition and on every tick while running.
type StateChangedEvent struct {
	State model.TimerState
}

// MessageEvent is informational, warning, or error text to surface to the
// user for the given duration.
type MessageEvent struct {
	Text     string
	Severity model.Severity
	Timeout  time.Duration
}

// TimeEntrySavedEvent fires exactly once per successfully persisted time
// entry.
type TimeEntrySavedEvent struct {
	IssueID int
	Seconds int
}

// RecentIssuesChangedEvent carries the new recent-issues snapshot,
// most-recent-first.
type RecentIssuesChangedEvent struct {
	Issues []model.Issue
}

// CachesRefreshedEvent fires after activities and statuses have been
// reloaded from the tracker.
type CachesRefreshedEvent struct {
	Activities []model.Activity
	Statuses   []model.IssueStatus
}

func (StateChangedEvent) isEvent()        {}
func (MessageEvent) isEvent()             {}
func (TimeEntrySavedEvent) isEvent()      {}
func (RecentIssuesChangedEvent) isEvent() {}
func (CachesRefreshedEvent) isEvent()     {}
