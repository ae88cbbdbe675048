// Package tracker implements the time-tracking state machine: a single
// active issue, an elapsed-seconds counter, and asynchronous persistence
// of finished intervals to the remote tracker. All remote calls happen off
// the caller's goroutine; outcomes are reported through the event channel.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/redtick/redtick/pkg/debug"
	"github.com/redtick/redtick/pkg/model"
	"github.com/redtick/redtick/pkg/redmine"
)

// Phase is the controller's lifecycle position.
type Phase int

const (
	// PhaseIdle means no issue is loaded.
	PhaseIdle Phase = iota
	// PhaseLoaded means an issue is active but the counter is halted.
	PhaseLoaded
	// PhaseRunning means the counter is ticking against the active issue.
	PhaseRunning
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoaded:
		return "loaded"
	case PhaseRunning:
		return "running"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

const defaultRequestTimeout = 30 * time.Second

// RecentStore persists the recent-issues list across restarts. Implemented
// by internal/statestore; nil disables persistence.
type RecentStore interface {
	SaveRecent(issues []model.Issue) error
	LoadRecent() ([]model.Issue, error)
}

// Options configures a Controller.
type Options struct {
	// Gateway talks to the remote tracker. Required.
	Gateway redmine.Gateway

	// RecentStore persists recent issues. Optional.
	RecentStore RecentStore

	// RequestTimeout bounds each remote call. Defaults to 30s.
	RequestTimeout time.Duration

	// DefaultActivityID is used when neither the issue nor the user has
	// selected an activity. 0 means pick the first cached activity.
	DefaultActivityID int

	// TickInterval overrides the counter tick rate. Defaults to one
	// second; tests shorten it.
	TickInterval time.Duration

	// EventBuffer sizes the event channel. Defaults to 32.
	EventBuffer int
}

// Controller owns the tracking state machine. One instance per process.
type Controller struct {
	mu         sync.Mutex
	gateway    redmine.Gateway
	store      RecentStore
	recent     *RecentRegistry
	counter    *Counter
	phase      Phase
	active     *model.Issue
	activities []model.Activity
	statuses   []model.IssueStatus

	// activityID is the activity the next saved interval will be booked
	// under.
	activityID        int
	defaultActivityID int

	// loadGen increments on every LoadIssue dispatch; completions carrying
	// an older generation are discarded.
	loadGen uint64
	// runGen increments whenever the counter (re)starts; stale save
	// completions must not reset a counter that has since been restarted.
	runGen uint64

	requestTimeout time.Duration
	events         chan Event
}

// saveRequest captures everything needed to persist a finished interval.
// It is built under the lock at halt time so later state changes cannot
// alter what gets saved.
type saveRequest struct {
	issueID      int
	activityID   int
	seconds      int
	resetOnError bool
	// deduct marks requests whose seconds are still on the clock at
	// dispatch; a successful save subtracts exactly those seconds so a
	// restart during the save is never double-counted.
	deduct bool
	runGen uint64
}

// NewController creates a controller and hydrates the recent-issues list
// from the store, if one is given.
func NewController(opts Options) (*Controller, error) {
	if opts.Gateway == nil {
		return nil, fmt.Errorf("tracker: gateway is required")
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	buffer := opts.EventBuffer
	if buffer <= 0 {
		buffer = 32
	}

	c := &Controller{
		gateway:           opts.Gateway,
		store:             opts.RecentStore,
		recent:            NewRecentRegistry(),
		phase:             PhaseIdle,
		activityID:        opts.DefaultActivityID,
		defaultActivityID: opts.DefaultActivityID,
		requestTimeout:    timeout,
		events:            make(chan Event, buffer),
	}
	c.counter = NewCounter(opts.TickInterval, c.handleTick)

	if c.store != nil {
		issues, err := c.store.LoadRecent()
		if err != nil {
			debug.Log("loading recent issues: %v", err)
		} else {
			c.recent.Replace(issues)
		}
	}

	return c, nil
}

// Events returns the channel the controller publishes on. When the buffer
// fills, the oldest event is dropped so the newest is never lost.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Close halts the counter. The controller must not be used afterwards.
func (c *Controller) Close() {
	c.counter.Stop()
}

// State returns a snapshot of the current timer state.
func (c *Controller) State() model.TimerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Recent returns the recent-issues snapshot, most-recent-first.
func (c *Controller) Recent() []model.Issue {
	return c.recent.List()
}

// Activities returns the cached activity enumeration.
func (c *Controller) Activities() []model.Activity {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Activity, len(c.activities))
	copy(out, c.activities)
	return out
}

// IssueStatuses returns the cached status enumeration.
func (c *Controller) IssueStatuses() []model.IssueStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.IssueStatus, len(c.statuses))
	copy(out, c.statuses)
	return out
}

// ActivityID returns the activity the next interval will be booked under.
func (c *Controller) ActivityID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activityID
}

// LoadIssue fetches the issue and makes it active. If the timer is running
// against a different issue, that interval is stopped first and — when
// saveCurrent is true and time is on the clock — persisted before the new
// issue's fetch is issued. autoStart begins tracking once the load
// succeeds. The call returns immediately; progress arrives as events.
func (c *Controller) LoadIssue(id int, autoStart, saveCurrent bool) {
	c.mu.Lock()
	c.loadGen++
	gen := c.loadGen

	var pending *saveRequest
	var halted bool
	if c.phase == PhaseRunning && c.active != nil && c.active.ID != id {
		pending = c.haltLocked(saveCurrent)
		halted = true
	}
	state := c.stateLocked()
	c.mu.Unlock()

	if halted {
		c.send(StateChangedEvent{State: state})
	}
	debug.Log("loading issue #%d (autoStart=%v saveCurrent=%v)", id, autoStart, saveCurrent)

	go c.runLoad(gen, id, autoStart, pending)
}

// Start begins tracking against the active issue. If the timer is already
// running, the interval accumulated so far is saved and tracking restarts
// from zero. Without an active issue this is rejected with a warning.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		c.send(MessageEvent{
			Text:     "No issue loaded. Select an issue before starting the timer.",
			Severity: model.SeverityWarning,
			Timeout:  DefaultMessageTimeout,
		})
		return
	}
	if c.phase == PhaseRunning {
		c.mu.Unlock()
		c.Stop(true, false)
		return
	}

	c.startLocked()
	state := c.stateLocked()
	c.mu.Unlock()

	c.send(StateChangedEvent{State: state})
}

// Stop halts tracking and persists the elapsed interval asynchronously.
// Zero elapsed seconds skips the save entirely. resetTimerOnError controls
// whether a failed save zeroes the counter or preserves it for a retry.
// With stopTimerAfterSaving false, tracking restarts from zero immediately
// after the save is dispatched (save-and-continue). Stopping while not
// running is a no-op.
func (c *Controller) Stop(resetTimerOnError, stopTimerAfterSaving bool) {
	c.mu.Lock()
	if c.phase != PhaseRunning {
		c.mu.Unlock()
		return
	}

	c.counter.Stop()
	c.phase = PhaseLoaded
	elapsed := c.counter.Value()

	var pending *saveRequest
	if elapsed > 0 {
		pending = &saveRequest{
			issueID:      c.active.ID,
			activityID:   c.activityID,
			seconds:      elapsed,
			resetOnError: resetTimerOnError,
			// With a full stop the counter keeps the value until the
			// save lands, so success must deduct it; save-and-continue
			// zeroes the counter below instead.
			deduct: stopTimerAfterSaving,
			runGen: c.runGen,
		}
	}

	if !stopTimerAfterSaving {
		// Save-and-continue: the finished interval is persisted while a
		// fresh one starts ticking.
		c.counter.Reset()
		c.startLocked()
	}
	state := c.stateLocked()
	c.mu.Unlock()

	c.send(StateChangedEvent{State: state})
	if pending != nil {
		go c.performSave(*pending)
	}
}

// StartStop toggles: stop-and-save while running, start otherwise.
func (c *Controller) StartStop() {
	c.mu.Lock()
	running := c.phase == PhaseRunning
	c.mu.Unlock()

	if running {
		c.Stop(true, true)
	} else {
		c.Start()
	}
}

// UpdateIssueStatus pushes a status change for the active issue to the
// tracker. The local copy only changes once the remote accepts it.
func (c *Controller) UpdateIssueStatus(statusID int) {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		c.send(MessageEvent{
			Text:     "No issue loaded. Select an issue before changing its status.",
			Severity: model.SeverityWarning,
			Timeout:  DefaultMessageTimeout,
		})
		return
	}
	issueID := c.active.ID
	c.mu.Unlock()

	go func() {
		ctx, cancel := c.opCtx()
		defer cancel()

		if err := c.gateway.UpdateIssueStatus(ctx, issueID, statusID); err != nil {
			c.send(MessageEvent{
				Text:     fmt.Sprintf("Updating status of issue #%d failed: %s", issueID, redmine.UserMessage(err)),
				Severity: model.SeverityError,
				Timeout:  DefaultMessageTimeout,
			})
			return
		}

		c.mu.Lock()
		if c.active == nil || c.active.ID != issueID {
			c.mu.Unlock()
			debug.Log("discarding status update result for issue #%d: issue no longer active", issueID)
			return
		}
		c.active.StatusID = statusID
		state := c.stateLocked()
		c.mu.Unlock()

		c.send(StateChangedEvent{State: state})
		c.send(MessageEvent{
			Text:     fmt.Sprintf("Updated status of issue #%d", issueID),
			Severity: model.SeverityInfo,
			Timeout:  DefaultMessageTimeout,
		})
	}()
}

// SelectActivity sets the activity the next saved interval is booked
// under. The ID must be present in the cached activity enumeration.
func (c *Controller) SelectActivity(activityID int) {
	c.mu.Lock()
	known := false
	for _, a := range c.activities {
		if a.ID == activityID {
			known = true
			break
		}
	}
	if !known {
		c.mu.Unlock()
		c.send(MessageEvent{
			Text:     fmt.Sprintf("Unknown activity %d. Refresh the activity list and try again.", activityID),
			Severity: model.SeverityWarning,
			Timeout:  DefaultMessageTimeout,
		})
		return
	}
	c.activityID = activityID
	if c.active != nil {
		c.active.ActivityID = activityID
	}
	state := c.stateLocked()
	c.mu.Unlock()

	debug.Log("selected activity %d", activityID)
	c.send(StateChangedEvent{State: state})
}

// RefreshCaches reloads the activity and status enumerations from the
// tracker in the background.
func (c *Controller) RefreshCaches() {
	go c.refreshCaches(false, 0)
}

// Reconnect swaps the gateway, typically after a configuration change.
// Refused while the timer is running so an in-flight interval is never
// split across connections.
func (c *Controller) Reconnect(gw redmine.Gateway) {
	c.mu.Lock()
	if c.phase == PhaseRunning {
		c.mu.Unlock()
		c.send(MessageEvent{
			Text:     "Cannot reconnect while the timer is running. Stop tracking first.",
			Severity: model.SeverityWarning,
			Timeout:  DefaultMessageTimeout,
		})
		return
	}
	c.gateway = gw
	c.mu.Unlock()

	debug.Log("reconnected to tracker")
	c.send(MessageEvent{
		Text:     "Reconnected to the tracker.",
		Severity: model.SeverityInfo,
		Timeout:  DefaultMessageTimeout,
	})
	go c.refreshCaches(false, 0)
}

// HandleExitChoice applies the user's decision about unsaved tracked time
// on exit. It returns true when the application may terminate.
func (c *Controller) HandleExitChoice(choice model.ExitChoice) bool {
	switch choice {
	case model.ExitSave:
		c.Stop(true, true)
		return true

	case model.ExitDiscard:
		c.mu.Lock()
		if c.phase == PhaseRunning {
			c.counter.Stop()
			c.phase = PhaseLoaded
		}
		c.counter.Reset()
		state := c.stateLocked()
		c.mu.Unlock()
		c.send(StateChangedEvent{State: state})
		return true

	default:
		return false
	}
}

// startLocked flips to running and begins ticking. Caller holds c.mu and
// has verified an issue is active.
func (c *Controller) startLocked() {
	c.runGen++
	c.phase = PhaseRunning
	c.counter.Start()
}

// haltLocked stops ticking, zeroes the counter and returns the save
// request for the finished interval, or nil when there is nothing to save.
// Caller holds c.mu; phase must be PhaseRunning.
func (c *Controller) haltLocked(save bool) *saveRequest {
	c.counter.Stop()
	c.phase = PhaseLoaded
	elapsed := c.counter.Value()
	c.counter.Reset()

	if !save || elapsed == 0 {
		return nil
	}
	return &saveRequest{
		issueID:    c.active.ID,
		activityID: c.activityID,
		seconds:    elapsed,
		runGen:     c.runGen,
	}
}

// runLoad performs the asynchronous part of LoadIssue: persist the
// previous interval first, then fetch, then refresh the enumeration
// caches, then optionally start tracking.
func (c *Controller) runLoad(gen uint64, id int, autoStart bool, pending *saveRequest) {
	if pending != nil {
		c.performSave(*pending)
	}

	ctx, cancel := c.opCtx()
	defer cancel()

	issue, err := c.gateway.FetchIssue(ctx, id)

	c.mu.Lock()
	if gen != c.loadGen {
		c.mu.Unlock()
		debug.Log("discarding stale load result for issue #%d", id)
		return
	}
	if err != nil {
		c.mu.Unlock()
		c.send(MessageEvent{
			Text:     fmt.Sprintf("Loading issue #%d failed: %s", id, redmine.UserMessage(err)),
			Severity: model.SeverityError,
			Timeout:  DefaultMessageTimeout,
		})
		return
	}

	c.active = &issue
	if c.phase == PhaseIdle {
		// Reloading the already-active issue must not halt a running
		// timer, so only an idle controller moves to loaded here.
		c.phase = PhaseLoaded
	}
	if issue.ActivityID != 0 {
		c.activityID = issue.ActivityID
	}
	c.recent.Add(issue)
	recents := c.recent.List()
	state := c.stateLocked()
	c.mu.Unlock()

	c.persistRecent(recents)
	c.send(RecentIssuesChangedEvent{Issues: recents})
	c.send(StateChangedEvent{State: state})
	c.send(MessageEvent{
		Text:     fmt.Sprintf("Loaded issue #%d: %s", issue.ID, issue.Subject),
		Severity: model.SeverityInfo,
		Timeout:  DefaultMessageTimeout,
	})

	c.refreshCaches(true, gen)

	if autoStart {
		// A newer load may have replaced the active issue while the caches
		// refreshed; starting now would track against the wrong issue.
		c.mu.Lock()
		superseded := gen != c.loadGen
		c.mu.Unlock()
		if superseded {
			debug.Log("skipping auto-start for superseded load of issue #%d", id)
			return
		}
		c.Start()
	}
}

// refreshCaches reloads activities and statuses in parallel. With checkGen
// set, results from a superseded load are discarded.
func (c *Controller) refreshCaches(checkGen bool, gen uint64) {
	ctx, cancel := c.opCtx()
	defer cancel()

	var (
		activities []model.Activity
		statuses   []model.IssueStatus
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		activities, err = c.gateway.FetchActivities(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		statuses, err = c.gateway.FetchIssueStatuses(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		c.send(MessageEvent{
			Text:     fmt.Sprintf("Refreshing tracker data failed: %s", redmine.UserMessage(err)),
			Severity: model.SeverityWarning,
			Timeout:  DefaultMessageTimeout,
		})
		return
	}

	c.mu.Lock()
	if checkGen && gen != c.loadGen {
		c.mu.Unlock()
		debug.Log("discarding stale cache refresh")
		return
	}
	c.activities = activities
	c.statuses = statuses
	if c.activityID == 0 {
		if c.defaultActivityID != 0 {
			c.activityID = c.defaultActivityID
		} else if len(activities) > 0 {
			c.activityID = activities[0].ID
		}
	}
	c.mu.Unlock()

	c.send(CachesRefreshedEvent{Activities: activities, Statuses: statuses})
}

// performSave persists one finished interval. On success the saved
// seconds come off the clock (when they were still on it) and
// TimeEntrySavedEvent fires exactly once. On failure the counter is
// zeroed only when the request asked for that and tracking has not
// restarted since.
func (c *Controller) performSave(req saveRequest) {
	ctx, cancel := c.opCtx()
	defer cancel()

	entry := redmine.TimeEntry{
		IssueID:    req.issueID,
		ActivityID: req.activityID,
		Seconds:    req.seconds,
		SpentOn:    time.Now(),
	}
	err := c.gateway.CreateTimeEntry(ctx, entry)

	c.mu.Lock()
	if err != nil {
		if req.resetOnError && c.runGen == req.runGen {
			c.counter.Reset()
		}
	} else if req.deduct {
		c.counter.Deduct(req.seconds)
	}
	state := c.stateLocked()
	c.mu.Unlock()

	if err != nil {
		debug.Log("saving time entry for issue #%d failed: %v", req.issueID, err)
		c.send(StateChangedEvent{State: state})
		c.send(MessageEvent{
			Text:     fmt.Sprintf("Saving time entry for issue #%d failed: %s", req.issueID, redmine.UserMessage(err)),
			Severity: model.SeverityError,
			Timeout:  DefaultMessageTimeout,
		})
		return
	}

	c.send(StateChangedEvent{State: state})
	c.send(TimeEntrySavedEvent{IssueID: req.issueID, Seconds: req.seconds})
	c.send(MessageEvent{
		Text:     fmt.Sprintf("Saved %s on issue #%d", formatSeconds(req.seconds), req.issueID),
		Severity: model.SeverityInfo,
		Timeout:  DefaultMessageTimeout,
	})
}

func (c *Controller) persistRecent(issues []model.Issue) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveRecent(issues); err != nil {
		debug.Log("persisting recent issues: %v", err)
	}
}

// handleTick publishes a state snapshot on every counter increment.
func (c *Controller) handleTick(int) {
	c.mu.Lock()
	state := c.stateLocked()
	c.mu.Unlock()
	c.send(StateChangedEvent{State: state})
}

// stateLocked builds a snapshot. Caller holds c.mu.
func (c *Controller) stateLocked() model.TimerState {
	state := model.TimerState{
		Running:        c.phase == PhaseRunning,
		ElapsedSeconds: c.counter.Value(),
	}
	if c.active != nil {
		issue := *c.active
		state.ActiveIssue = &issue
	}
	return state
}

func (c *Controller) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.requestTimeout)
}

// send delivers an event without ever blocking the state machine: when the
// buffer is full the oldest event is dropped so the newest wins.
func (c *Controller) send(ev Event) {
	for {
		select {
		case c.events <- ev:
			return
		default:
		}
		select {
		case <-c.events:
		default:
		}
	}
}

func formatSeconds(seconds int) string {
	return model.TimerState{ElapsedSeconds: seconds}.Clock()
}
