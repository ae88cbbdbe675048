package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/redtick/redtick/internal/statestore"
	"github.com/redtick/redtick/pkg/config"
	"github.com/redtick/redtick/pkg/debug"
	"github.com/redtick/redtick/pkg/model"
	"github.com/redtick/redtick/pkg/redmine"
	"github.com/redtick/redtick/pkg/tracker"
	"github.com/redtick/redtick/pkg/ui"
	"github.com/redtick/redtick/pkg/version"
	"github.com/redtick/redtick/pkg/watcher"
)

// saveWaitTimeout bounds how long we wait for the final time entry to
// reach the tracker before the process exits.
const saveWaitTimeout = 35 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to the configuration file")
	issueID := flag.Int("issue", 0, "Load this issue on startup")
	setupFlag := flag.Bool("setup", false, "Run the connection setup wizard")
	versionFlag := flag.Bool("version", false, "Show version")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help {
		fmt.Println("Usage: redtick [options]")
		fmt.Println("\nA terminal time tracker for Redmine.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("redtick %s\n", version.Version)
		os.Exit(0)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "redtick is interactive and needs a terminal")
		os.Exit(1)
	}

	if err := run(*configPath, *issueID, *setupFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, issueID int, forceSetup bool) error {
	if configPath == "" {
		configPath = config.ConfigPath()
	}

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	if forceSetup || cfg.Validate() != nil {
		if err := ui.RunSetupWizard(&cfg); err != nil {
			return fmt.Errorf("setup wizard: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.SaveTo(cfg, configPath); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Printf("Configuration saved to %s\n", configPath)
	}

	debug.Log("starting redtick %s against %s", version.Version, cfg.Connection.URL)

	store, err := statestore.Open(config.RecentDBPath())
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer store.Close()

	client := newClient(cfg)
	ctrl, err := tracker.NewController(tracker.Options{
		Gateway:           client,
		RecentStore:       store,
		RequestTimeout:    cfg.Connection.Timeout(),
		DefaultActivityID: cfg.Tracking.DefaultActivityID,
	})
	if err != nil {
		return err
	}
	defer ctrl.Close()

	// Reconnect with fresh settings whenever the config file changes. The
	// controller refuses the swap while the timer is running.
	w, err := watcher.New(configPath, watcher.WithOnChange(func() {
		reloaded, err := config.LoadFrom(configPath)
		if err != nil || reloaded.Validate() != nil {
			debug.Log("ignoring config change: %v", err)
			return
		}
		ctrl.Reconnect(newClient(reloaded))
	}))
	if err != nil {
		return fmt.Errorf("watching config: %w", err)
	}
	if err := w.Start(); err != nil {
		debug.Log("config watcher disabled: %v", err)
	} else {
		defer w.Stop()
	}

	ctrl.RefreshCaches()
	if issueID > 0 {
		ctrl.LoadIssue(issueID, cfg.Tracking.AutoStart, cfg.Tracking.SaveOnSwitchEnabled())
	}

	for {
		m := ui.New(ui.Options{
			Tracker:         ctrl,
			BaseURL:         cfg.Connection.URL,
			AutoStartOnLoad: cfg.Tracking.AutoStart,
			SaveOnSwitch:    cfg.Tracking.SaveOnSwitchEnabled(),
		})
		if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
			return fmt.Errorf("running ui: %w", err)
		}

		state := ctrl.State()
		if !state.Running && state.ElapsedSeconds == 0 {
			return nil
		}

		// Unsaved tracked time: ask before letting the process die.
		choice, err := ui.RunExitPrompt(state.ActiveIssue.ID, state.Clock())
		if err != nil {
			// Treat an aborted prompt as cancel and return to the UI.
			debug.Log("exit prompt aborted: %v", err)
			choice = model.ExitCancel
		}
		if choice == model.ExitSave {
			// Clear leftovers from the session so reportFinalSave only sees
			// events emitted by the exit save itself.
			drainEvents(ctrl)
		}
		if !ctrl.HandleExitChoice(choice) {
			continue
		}
		if choice == model.ExitSave {
			reportFinalSave(ctrl)
		}
		return nil
	}
}

func newClient(cfg config.Config) *redmine.Client {
	return redmine.NewClient(redmine.ClientConfig{
		BaseURL:         cfg.Connection.URL,
		APIKey:          cfg.Connection.APIKey,
		Timeout:         cfg.Connection.Timeout(),
		IgnoreSSLErrors: cfg.Connection.IgnoreSSLErrors,
	})
}

// drainEvents empties the buffered event channel without blocking.
func drainEvents(ctrl *tracker.Controller) {
	for {
		select {
		case <-ctrl.Events():
		default:
			return
		}
	}
}

// reportFinalSave blocks until the exit-time save either lands or fails,
// so the process does not exit with the entry still in flight.
func reportFinalSave(ctrl *tracker.Controller) {
	deadline := time.After(saveWaitTimeout)
	for {
		select {
		case ev := <-ctrl.Events():
			switch ev := ev.(type) {
			case tracker.TimeEntrySavedEvent:
				fmt.Printf("Saved %s on issue #%d\n",
					model.TimerState{ElapsedSeconds: ev.Seconds}.Clock(), ev.IssueID)
				return
			case tracker.MessageEvent:
				// A failed save reports through an error message. Anything
				// else (informational leftovers, warnings from background
				// refreshes) is not the save outcome.
				if ev.Severity == model.SeverityError {
					fmt.Fprintln(os.Stderr, ev.Text)
					return
				}
			}
		case <-deadline:
			fmt.Fprintln(os.Stderr, "Timed out waiting for the time entry to save.")
			return
		}
	}
}
