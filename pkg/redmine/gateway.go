// Package redmine talks to a Redmine-compatible issue tracker over its
// JSON REST API. The Gateway interface is what the tracking controller
// consumes; Client is the production implementation.
package redmine

import (
	"context"
	"time"

	"github.com/redtick/redtick/pkg/model"
)

// TimeEntry is a duration to be persisted against an issue.
type TimeEntry struct {
	IssueID    int
	ActivityID int // zero means "use the tracker's default activity"
	Seconds    int
	SpentOn    time.Time
	Comment    string
}

// Gateway is the remote tracker contract consumed by the tracking
// controller. All calls block until completion or context cancellation;
// asynchrony is the caller's concern.
type Gateway interface {
	// FetchIssue loads a single issue by ID.
	FetchIssue(ctx context.Context, id int) (model.Issue, error)

	// FetchActivities loads the enumerated time-entry activities.
	FetchActivities(ctx context.Context) ([]model.Activity, error)

	// FetchIssueStatuses loads the workflow statuses.
	FetchIssueStatuses(ctx context.Context) ([]model.IssueStatus, error)

	// CreateTimeEntry persists a tracked duration.
	CreateTimeEntry(ctx context.Context, entry TimeEntry) error

	// UpdateIssueStatus changes an issue's workflow status.
	UpdateIssueStatus(ctx context.Context, issueID, statusID int) error
}
