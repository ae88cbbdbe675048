package redmine

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func newTestClient(url string) *Client {
	return NewClient(ClientConfig{
		BaseURL: url,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	})
}

func TestFetchIssue(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Redmine-API-Key")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"issue":{"id":42,"subject":"Fix the flux capacitor",
			"description":"It sparks.","status":{"id":2,"name":"In Progress"}}}`)
	}))
	defer srv.Close()

	issue, err := newTestClient(srv.URL).FetchIssue(context.Background(), 42)
	if err != nil {
		t.Fatalf("FetchIssue failed: %v", err)
	}

	if gotPath != "/issues/42.json" {
		t.Errorf("expected path /issues/42.json, got %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("expected API key header, got %q", gotKey)
	}
	if issue.ID != 42 {
		t.Errorf("expected ID 42, got %d", issue.ID)
	}
	if issue.Subject != "Fix the flux capacitor" {
		t.Errorf("unexpected subject %q", issue.Subject)
	}
	if issue.StatusID != 2 {
		t.Errorf("expected status 2, got %d", issue.StatusID)
	}
}

func TestFetchIssue_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchIssue(context.Background(), 99)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
	if Retryable(err) {
		t.Error("404 must not be retryable")
	}
}

func TestFetchIssue_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchIssue(context.Background(), 1)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got: %v", err)
	}
}

func TestFetchIssue_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `{"issue":{"id":7,"subject":"ok"}}`)
	}))
	defer srv.Close()

	issue, err := newTestClient(srv.URL).FetchIssue(context.Background(), 7)
	if err != nil {
		t.Fatalf("expected retry to succeed, got: %v", err)
	}
	if issue.ID != 7 {
		t.Errorf("expected ID 7, got %d", issue.ID)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestFetchIssue_DoesNotRetryRejections(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"errors":["Subject cannot be blank"]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchIssue(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error")
	}
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("expected RemoteError, got %T: %v", err, err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("rejection must not be retried, got %d attempts", got)
	}
	if UserMessage(err) != "Subject cannot be blank" {
		t.Errorf("expected tracker validation text, got %q", UserMessage(err))
	}
}

func TestCreateTimeEntry(t *testing.T) {
	var gotBody map[string]map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/time_entries.json" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &gotBody); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	entry := TimeEntry{
		IssueID:    42,
		ActivityID: 9,
		Seconds:    125,
		SpentOn:    time.Date(2026, 8, 23, 14, 30, 0, 0, time.UTC),
	}
	if err := newTestClient(srv.URL).CreateTimeEntry(context.Background(), entry); err != nil {
		t.Fatalf("CreateTimeEntry failed: %v", err)
	}

	te := gotBody["time_entry"]
	if te == nil {
		t.Fatal("expected time_entry envelope")
	}
	if got := te["issue_id"].(float64); got != 42 {
		t.Errorf("expected issue_id 42, got %v", got)
	}
	if got := te["activity_id"].(float64); got != 9 {
		t.Errorf("expected activity_id 9, got %v", got)
	}
	// 125 seconds is 125/3600 hours
	hours := te["hours"].(float64)
	if hours < 0.0347 || hours > 0.0348 {
		t.Errorf("expected hours ~0.0347, got %v", hours)
	}
	if got := te["spent_on"].(string); got != "2026-08-23" {
		t.Errorf("expected spent_on 2026-08-23, got %q", got)
	}
}

func TestCreateTimeEntry_ValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"errors":["Activity is not included in the list"]}`)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).CreateTimeEntry(context.Background(), TimeEntry{
		IssueID: 1, Seconds: 60, SpentOn: time.Now(),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if Retryable(err) {
		t.Error("validation rejection must not be retryable")
	}
	if UserMessage(err) != "Activity is not included in the list" {
		t.Errorf("unexpected user message %q", UserMessage(err))
	}
}

func TestUpdateIssueStatus(t *testing.T) {
	var gotBody map[string]map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/issues/42.json" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := newTestClient(srv.URL).UpdateIssueStatus(context.Background(), 42, 5); err != nil {
		t.Fatalf("UpdateIssueStatus failed: %v", err)
	}
	if got := gotBody["issue"]["status_id"].(float64); got != 5 {
		t.Errorf("expected status_id 5, got %v", got)
	}
}

func TestFetchActivities(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/enumerations/time_entry_activities.json" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		io.WriteString(w, `{"time_entry_activities":[
			{"id":8,"name":"Design"},{"id":9,"name":"Development"}]}`)
	}))
	defer srv.Close()

	acts, err := newTestClient(srv.URL).FetchActivities(context.Background())
	if err != nil {
		t.Fatalf("FetchActivities failed: %v", err)
	}
	if len(acts) != 2 || acts[1].Name != "Development" {
		t.Errorf("unexpected activities: %+v", acts)
	}
}

func TestFetchIssueStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/issue_statuses.json" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		io.WriteString(w, `{"issue_statuses":[{"id":1,"name":"New"},{"id":5,"name":"Closed"}]}`)
	}))
	defer srv.Close()

	sts, err := newTestClient(srv.URL).FetchIssueStatuses(context.Background())
	if err != nil {
		t.Fatalf("FetchIssueStatuses failed: %v", err)
	}
	if len(sts) != 2 || sts[0].Name != "New" {
		t.Errorf("unexpected statuses: %+v", sts)
	}
}

func TestNetworkError_Retryable(t *testing.T) {
	// Connect to a closed server to force a transport error.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "k", Timeout: time.Second})
	_, err := client.FetchIssue(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NetworkError, got %T: %v", err, err)
	}
	if !Retryable(err) {
		t.Error("transport failure must be retryable")
	}
}
