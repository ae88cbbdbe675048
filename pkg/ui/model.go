// Package ui renders the terminal interface: the active issue, the ticking
// clock, and pickers for issues, activities, and statuses. All tracking
// logic lives in the tracker package; the UI only translates key presses
// into tracker calls and tracker events into screen updates.
package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/redtick/redtick/pkg/debug"
	"github.com/redtick/redtick/pkg/model"
	"github.com/redtick/redtick/pkg/tracker"
)

// Tracker is the slice of the tracking controller the UI needs.
type Tracker interface {
	Events() <-chan tracker.Event
	State() model.TimerState
	Recent() []model.Issue
	Activities() []model.Activity
	IssueStatuses() []model.IssueStatus
	ActivityID() int
	LoadIssue(id int, autoStart, saveCurrent bool)
	StartStop()
	UpdateIssueStatus(statusID int)
	SelectActivity(activityID int)
	RefreshCaches()
}

// focus is which UI element owns the keyboard.
type focus int

const (
	focusMain focus = iota
	focusIssueInput
	focusRecentList
	focusActivityPicker
	focusStatusPicker
	focusDescription
)

type trackerEventMsg struct {
	event tracker.Event
}

type clearMessageMsg struct {
	gen int
}

// Options configures the UI model.
type Options struct {
	Tracker Tracker

	// BaseURL of the tracker, for clipboard issue links.
	BaseURL string

	// AutoStartOnLoad starts the timer as soon as an issue loads.
	AutoStartOnLoad bool

	// SaveOnSwitch persists the running interval when switching issues.
	SaveOnSwitch bool
}

// Model is the bubbletea model for the tracking screen.
type Model struct {
	tracker Tracker
	baseURL string

	autoStart    bool
	saveOnSwitch bool

	state      model.TimerState
	recents    []model.Issue
	activities []model.Activity
	statuses   []model.IssueStatus

	message    string
	messageSev model.Severity
	messageGen int

	focus        focus
	issueInput   textinput.Model
	recentList   list.Model
	pickerCursor int
	descView     viewport.Model

	width  int
	height int

	quitting bool
}

// recentItem adapts an issue to the bubbles list item interface.
type recentItem struct {
	issue model.Issue
}

func (i recentItem) Title() string       { return fmt.Sprintf("#%d %s", i.issue.ID, i.issue.Subject) }
func (i recentItem) Description() string { return "" }
func (i recentItem) FilterValue() string { return i.Title() }

// New creates the UI model. The initial snapshot is pulled synchronously so
// the first frame is already populated.
func New(opts Options) Model {
	input := textinput.New()
	input.Prompt = "issue #"
	input.Placeholder = "1234"
	input.CharLimit = 9
	input.Width = 12

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	recentList := list.New(nil, delegate, 0, 0)
	recentList.Title = "Recent issues"
	recentList.SetShowStatusBar(false)
	recentList.SetFilteringEnabled(false)
	recentList.SetShowHelp(false)

	m := Model{
		tracker:      opts.Tracker,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		autoStart:    opts.AutoStartOnLoad,
		saveOnSwitch: opts.SaveOnSwitch,
		issueInput:   input,
		recentList:   recentList,
		descView:     viewport.New(0, 0),
	}
	if opts.Tracker != nil {
		m.state = opts.Tracker.State()
		m.recents = opts.Tracker.Recent()
		m.activities = opts.Tracker.Activities()
		m.statuses = opts.Tracker.IssueStatuses()
		m.syncRecentList()
	}
	return m
}

// Init starts listening for tracker events.
func (m Model) Init() tea.Cmd {
	return m.waitForEvent()
}

// waitForEvent blocks on the tracker's event channel and feeds the next
// event into the update loop.
func (m Model) waitForEvent() tea.Cmd {
	ch := m.tracker.Events()
	return func() tea.Msg {
		return trackerEventMsg{event: <-ch}
	}
}

// Update handles key presses, window resizes, and tracker events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recentList.SetSize(msg.Width-2, max(4, msg.Height-6))
		m.descView.Width = msg.Width - 2
		m.descView.Height = max(4, msg.Height-8)
		return m, nil

	case trackerEventMsg:
		return m.handleTrackerEvent(msg.event)

	case clearMessageMsg:
		if msg.gen == m.messageGen {
			m.message = ""
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleTrackerEvent(ev tracker.Event) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.waitForEvent()}

	switch ev := ev.(type) {
	case tracker.StateChangedEvent:
		m.state = ev.State

	case tracker.MessageEvent:
		m.message = ev.Text
		m.messageSev = ev.Severity
		m.messageGen++
		timeout := ev.Timeout
		if timeout <= 0 {
			timeout = tracker.DefaultMessageTimeout
		}
		gen := m.messageGen
		cmds = append(cmds, tea.Tick(timeout, func(time.Time) tea.Msg {
			return clearMessageMsg{gen: gen}
		}))

	case tracker.RecentIssuesChangedEvent:
		m.recents = ev.Issues
		m.syncRecentList()

	case tracker.CachesRefreshedEvent:
		m.activities = ev.Activities
		m.statuses = ev.Statuses

	case tracker.TimeEntrySavedEvent:
		debug.Log("ui: time entry saved for issue #%d (%ds)", ev.IssueID, ev.Seconds)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Global quit works from any focus.
	if msg.Type == tea.KeyCtrlC {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.focus {
	case focusIssueInput:
		return m.handleIssueInputKey(msg)
	case focusRecentList:
		return m.handleRecentListKey(msg)
	case focusActivityPicker:
		return m.handlePickerKey(msg, len(m.activities), m.applyActivity)
	case focusStatusPicker:
		return m.handlePickerKey(msg, len(m.statuses), m.applyStatus)
	case focusDescription:
		return m.handleDescriptionKey(msg)
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case " ", "s":
		m.tracker.StartStop()
		return m, nil

	case "l":
		m.focus = focusIssueInput
		m.issueInput.SetValue("")
		m.issueInput.Focus()
		return m, textinput.Blink

	case "r":
		if len(m.recents) == 0 {
			return m.showLocalMessage("No recent issues yet.", model.SeverityInfo)
		}
		m.focus = focusRecentList
		return m, nil

	case "a":
		if len(m.activities) == 0 {
			return m.showLocalMessage("No activities loaded. Refresh with R.", model.SeverityWarning)
		}
		m.focus = focusActivityPicker
		m.pickerCursor = m.activityCursor()
		return m, nil

	case "t":
		if m.state.ActiveIssue == nil {
			return m.showLocalMessage("No issue loaded.", model.SeverityWarning)
		}
		if len(m.statuses) == 0 {
			return m.showLocalMessage("No statuses loaded. Refresh with R.", model.SeverityWarning)
		}
		m.focus = focusStatusPicker
		m.pickerCursor = m.statusCursor()
		return m, nil

	case "d":
		if m.state.ActiveIssue == nil {
			return m.showLocalMessage("No issue loaded.", model.SeverityWarning)
		}
		m.focus = focusDescription
		m.descView.SetContent(m.renderDescription())
		m.descView.GotoTop()
		return m, nil

	case "y":
		return m.copyIssueURL()

	case "R":
		m.tracker.RefreshCaches()
		return m, nil
	}

	return m, nil
}

func (m Model) handleIssueInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEscape:
		m.focus = focusMain
		m.issueInput.Blur()
		return m, nil

	case tea.KeyEnter:
		raw := strings.TrimSpace(m.issueInput.Value())
		m.focus = focusMain
		m.issueInput.Blur()
		if raw == "" {
			return m, nil
		}
		id, err := strconv.Atoi(strings.TrimPrefix(raw, "#"))
		if err != nil || id <= 0 {
			return m.showLocalMessage(fmt.Sprintf("%q is not an issue number.", raw), model.SeverityWarning)
		}
		m.tracker.LoadIssue(id, m.autoStart, m.saveOnSwitch)
		return m, nil
	}

	var cmd tea.Cmd
	m.issueInput, cmd = m.issueInput.Update(msg)
	return m, cmd
}

func (m Model) handleRecentListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEscape:
		m.focus = focusMain
		return m, nil

	case tea.KeyEnter:
		m.focus = focusMain
		if item, ok := m.recentList.SelectedItem().(recentItem); ok {
			m.tracker.LoadIssue(item.issue.ID, m.autoStart, m.saveOnSwitch)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.recentList, cmd = m.recentList.Update(msg)
	return m, cmd
}

func (m Model) handlePickerKey(msg tea.KeyMsg, count int, apply func(int) (tea.Model, tea.Cmd)) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.focus = focusMain
		return m, nil
	case "up", "k":
		if m.pickerCursor > 0 {
			m.pickerCursor--
		}
		return m, nil
	case "down", "j":
		if m.pickerCursor < count-1 {
			m.pickerCursor++
		}
		return m, nil
	case "enter":
		return apply(m.pickerCursor)
	}
	return m, nil
}

func (m Model) handleDescriptionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "d":
		m.focus = focusMain
		return m, nil
	}
	var cmd tea.Cmd
	m.descView, cmd = m.descView.Update(msg)
	return m, cmd
}

func (m Model) applyActivity(cursor int) (tea.Model, tea.Cmd) {
	m.focus = focusMain
	if cursor >= 0 && cursor < len(m.activities) {
		m.tracker.SelectActivity(m.activities[cursor].ID)
	}
	return m, nil
}

func (m Model) applyStatus(cursor int) (tea.Model, tea.Cmd) {
	m.focus = focusMain
	if cursor >= 0 && cursor < len(m.statuses) {
		m.tracker.UpdateIssueStatus(m.statuses[cursor].ID)
	}
	return m, nil
}

func (m Model) copyIssueURL() (tea.Model, tea.Cmd) {
	if m.state.ActiveIssue == nil {
		return m.showLocalMessage("No issue loaded.", model.SeverityWarning)
	}
	url := fmt.Sprintf("%s/issues/%d", m.baseURL, m.state.ActiveIssue.ID)
	if err := clipboard.WriteAll(url); err != nil {
		return m.showLocalMessage("Clipboard unavailable: "+err.Error(), model.SeverityWarning)
	}
	return m.showLocalMessage("Copied "+url, model.SeverityInfo)
}

// showLocalMessage displays a message originating in the UI itself, with
// the same timeout behavior as tracker messages.
func (m Model) showLocalMessage(text string, severity model.Severity) (tea.Model, tea.Cmd) {
	m.message = text
	m.messageSev = severity
	m.messageGen++
	gen := m.messageGen
	return m, tea.Tick(tracker.DefaultMessageTimeout, func(time.Time) tea.Msg {
		return clearMessageMsg{gen: gen}
	})
}

func (m *Model) syncRecentList() {
	items := make([]list.Item, len(m.recents))
	for i, issue := range m.recents {
		items[i] = recentItem{issue: issue}
	}
	m.recentList.SetItems(items)
}

// activityCursor returns the index of the currently selected activity, so
// the picker opens on it.
func (m Model) activityCursor() int {
	for i, a := range m.activities {
		if a.ID == m.tracker.ActivityID() {
			return i
		}
	}
	return 0
}

func (m Model) statusCursor() int {
	if m.state.ActiveIssue == nil {
		return 0
	}
	for i, s := range m.statuses {
		if s.ID == m.state.ActiveIssue.StatusID {
			return i
		}
	}
	return 0
}

// renderDescription renders the issue description as markdown; Redmine
// textile mostly reads fine through a markdown renderer, and plain text
// passes through untouched.
func (m Model) renderDescription() string {
	desc := m.state.ActiveIssue.Description
	if strings.TrimSpace(desc) == "" {
		return labelStyle.Render("(no description)")
	}

	width := m.descView.Width
	if width <= 0 {
		width = 80
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return desc
	}
	out, err := renderer.Render(desc)
	if err != nil {
		return desc
	}
	return out
}

// View renders the current frame.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("redtick"))
	if m.baseURL != "" {
		b.WriteString(labelStyle.Render("  " + m.baseURL))
	}
	b.WriteString("\n\n")

	switch m.focus {
	case focusRecentList:
		b.WriteString(m.recentList.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter load · esc back"))
		return b.String()

	case focusActivityPicker:
		b.WriteString(m.renderPicker("Select activity", activityNames(m.activities)))
		return b.String()

	case focusStatusPicker:
		b.WriteString(m.renderPicker("Set issue status", statusNames(m.statuses)))
		return b.String()

	case focusDescription:
		b.WriteString(m.renderIssueHeader())
		b.WriteString("\n")
		b.WriteString(m.descView.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ scroll · esc back"))
		return b.String()
	}

	b.WriteString(m.renderIssueHeader())
	b.WriteString("\n")
	b.WriteString(m.renderClock())
	b.WriteString("\n\n")

	if m.focus == focusIssueInput {
		b.WriteString(promptStyle.Render("Load ") + m.issueInput.View())
		b.WriteString("\n")
	}

	if m.message != "" {
		width := m.width
		if width <= 0 {
			width = 80
		}
		b.WriteString(messageStyle(m.messageSev).Render(truncate(m.message, width)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("space start/stop · l load · r recent · a activity · t status · d details · y copy url · R refresh · q quit"))
	return b.String()
}

func (m Model) renderIssueHeader() string {
	if m.state.ActiveIssue == nil {
		return labelStyle.Render("No issue loaded. Press l to load one by number.")
	}

	issue := m.state.ActiveIssue
	width := m.width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	b.WriteString(subjectStyle.Render(truncate(fmt.Sprintf("#%d %s", issue.ID, issue.Subject), width-12)))
	if name := m.statusName(issue.StatusID); name != "" {
		b.WriteString("  ")
		b.WriteString(statusBadgeStyle.Render("[" + name + "]"))
	}
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("activity: " + m.activityName()))
	return b.String()
}

func (m Model) renderClock() string {
	clock := m.state.Clock()
	if m.state.Running {
		return clockRunningStyle.Render("  ● " + clock + "  tracking")
	}
	return clockStoppedStyle.Render("  ○ " + clock + "  stopped")
}

func (m Model) renderPicker(title string, options []string) string {
	var b strings.Builder
	b.WriteString(promptStyle.Render(title))
	b.WriteString("\n\n")
	for i, opt := range options {
		if i == m.pickerCursor {
			b.WriteString(selectedStyle.Render("> " + opt))
		} else {
			b.WriteString("  " + opt)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ move · enter apply · esc back"))
	return b.String()
}

func (m Model) activityName() string {
	id := m.tracker.ActivityID()
	for _, a := range m.activities {
		if a.ID == id {
			return a.Name
		}
	}
	if id == 0 {
		return "(none)"
	}
	return fmt.Sprintf("#%d", id)
}

func (m Model) statusName(id int) string {
	for _, s := range m.statuses {
		if s.ID == id {
			return s.Name
		}
	}
	return ""
}

func activityNames(activities []model.Activity) []string {
	out := make([]string, len(activities))
	for i, a := range activities {
		out[i] = a.Name
	}
	return out
}

func statusNames(statuses []model.IssueStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = s.Name
	}
	return out
}
