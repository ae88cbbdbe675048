package redmine

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"

	"github.com/redtick/redtick/pkg/debug"
	"github.com/redtick/redtick/pkg/metrics"
	"github.com/redtick/redtick/pkg/model"
	"github.com/redtick/redtick/pkg/version"
)

const (
	apiKeyHeader = "X-Redmine-API-Key"

	// maxRetries bounds retry attempts for transient network failures.
	maxRetries = 2
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL is the tracker root, without a trailing slash.
	BaseURL string
	// APIKey authenticates every request.
	APIKey string
	// Timeout bounds each request including retries. Zero uses 30s.
	Timeout time.Duration
	// IgnoreSSLErrors disables TLS certificate verification.
	IgnoreSSLErrors bool
}

// Client implements Gateway against the Redmine JSON REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

var _ Gateway = (*Client)(nil)

// NewClient creates a Client for the given tracker.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport
	if cfg.IgnoreSSLErrors {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		transport = t
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Wire shapes of the Redmine JSON API.

type issueEnvelope struct {
	Issue wireIssue `json:"issue"`
}

type wireIssue struct {
	ID          int      `json:"id"`
	Subject     string   `json:"subject"`
	Description string   `json:"description"`
	Status      *wireRef `json:"status"`
	Activity    *wireRef `json:"activity"`
}

type wireRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type activitiesEnvelope struct {
	Activities []model.Activity `json:"time_entry_activities"`
}

type statusesEnvelope struct {
	Statuses []model.IssueStatus `json:"issue_statuses"`
}

type timeEntryEnvelope struct {
	TimeEntry wireTimeEntry `json:"time_entry"`
}

type wireTimeEntry struct {
	IssueID    int     `json:"issue_id"`
	Hours      float64 `json:"hours"`
	ActivityID int     `json:"activity_id,omitempty"`
	SpentOn    string  `json:"spent_on"`
	Comments   string  `json:"comments,omitempty"`
}

type issueUpdateEnvelope struct {
	Issue wireIssueUpdate `json:"issue"`
}

type wireIssueUpdate struct {
	StatusID int `json:"status_id"`
}

type errorsEnvelope struct {
	Errors []string `json:"errors"`
}

// FetchIssue loads a single issue by ID.
func (c *Client) FetchIssue(ctx context.Context, id int) (model.Issue, error) {
	defer metrics.Timer(metrics.FetchIssue)()

	op := fmt.Sprintf("fetching issue #%d", id)
	var env issueEnvelope
	err := c.doJSON(ctx, op, http.MethodGet, fmt.Sprintf("/issues/%d.json", id), nil, &env)
	if err != nil {
		return model.Issue{}, err
	}

	issue := model.Issue{
		ID:          env.Issue.ID,
		Subject:     env.Issue.Subject,
		Description: env.Issue.Description,
	}
	if env.Issue.Status != nil {
		issue.StatusID = env.Issue.Status.ID
	}
	if env.Issue.Activity != nil {
		issue.ActivityID = env.Issue.Activity.ID
	}
	return issue, nil
}

// FetchActivities loads the enumerated time-entry activities.
func (c *Client) FetchActivities(ctx context.Context) ([]model.Activity, error) {
	defer metrics.Timer(metrics.RefreshCaches)()

	var env activitiesEnvelope
	err := c.doJSON(ctx, "fetching activities", http.MethodGet,
		"/enumerations/time_entry_activities.json", nil, &env)
	if err != nil {
		return nil, err
	}
	return env.Activities, nil
}

// FetchIssueStatuses loads the workflow statuses.
func (c *Client) FetchIssueStatuses(ctx context.Context) ([]model.IssueStatus, error) {
	defer metrics.Timer(metrics.RefreshCaches)()

	var env statusesEnvelope
	err := c.doJSON(ctx, "fetching issue statuses", http.MethodGet,
		"/issue_statuses.json", nil, &env)
	if err != nil {
		return nil, err
	}
	return env.Statuses, nil
}

// CreateTimeEntry persists a tracked duration. The Redmine API takes hours
// as a float; the conversion from seconds happens here so callers only
// ever deal in seconds.
func (c *Client) CreateTimeEntry(ctx context.Context, entry TimeEntry) error {
	defer metrics.Timer(metrics.CreateTimeEntry)()

	body := timeEntryEnvelope{TimeEntry: wireTimeEntry{
		IssueID:    entry.IssueID,
		Hours:      float64(entry.Seconds) / 3600.0,
		ActivityID: entry.ActivityID,
		SpentOn:    entry.SpentOn.Format("2006-01-02"),
		Comments:   entry.Comment,
	}}

	op := fmt.Sprintf("saving time entry for issue #%d", entry.IssueID)
	return c.doJSON(ctx, op, http.MethodPost, "/time_entries.json", body, nil)
}

// UpdateIssueStatus changes an issue's workflow status.
func (c *Client) UpdateIssueStatus(ctx context.Context, issueID, statusID int) error {
	defer metrics.Timer(metrics.UpdateStatus)()

	body := issueUpdateEnvelope{Issue: wireIssueUpdate{StatusID: statusID}}
	op := fmt.Sprintf("updating status of issue #%d", issueID)
	return c.doJSON(ctx, op, http.MethodPut, fmt.Sprintf("/issues/%d.json", issueID), body, nil)
}

// doJSON performs one API call with bounded retries. Transient transport
// failures are retried with exponential backoff; rejections from the
// tracker are permanent and returned immediately.
func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
	}

	attempt := 0
	operation := func() error {
		attempt++
		debug.LogIf(attempt > 1, "%s: retry %d", op, attempt-1)
		err := c.doOnce(ctx, op, method, path, payload, out)
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return err
	}
	return nil
}

func (c *Client) doOnce(ctx context.Context, op, method, path string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("User-Agent", "redtick/"+version.Version)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fall through to decode
	case resp.StatusCode == http.StatusNotFound:
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Err: ErrNotFound}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Err: ErrUnauthorized}
	case resp.StatusCode >= 500:
		// Server-side trouble is usually transient.
		return &NetworkError{Op: op, Err: fmt.Errorf("tracker returned %d", resp.StatusCode)}
	default:
		var ee errorsEnvelope
		if data, readErr := io.ReadAll(resp.Body); readErr == nil {
			_ = json.Unmarshal(data, &ee)
		}
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Messages: ee.Errors}
	}

	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
