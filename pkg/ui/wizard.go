package ui

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/redtick/redtick/pkg/config"
	"github.com/redtick/redtick/pkg/model"
)

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// newForm creates a form with appropriate settings based on TTY detection.
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

// RunSetupWizard interactively fills in the connection settings. Existing
// values are offered as defaults so the wizard doubles as an editor.
func RunSetupWizard(cfg *config.Config) error {
	fmt.Println("redtick needs a tracker connection to get going.")
	fmt.Println("")

	serverURL := cfg.Connection.URL
	apiKey := cfg.Connection.APIKey
	ignoreSSL := cfg.Connection.IgnoreSSLErrors
	autoStart := cfg.Tracking.AutoStart

	form := newForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Tracker URL").
				Description("The base URL of your Redmine server").
				Placeholder("https://redmine.example.com").
				Value(&serverURL).
				Validate(validateServerURL),
			huh.NewInput().
				Title("API key").
				Description("Found under My account → API access key").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("the API key is required")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Ignore TLS certificate errors?").
				Description("Only for servers with self-signed certificates").
				Value(&ignoreSSL).
				Affirmative("Yes").
				Negative("No"),
			huh.NewConfirm().
				Title("Start the timer automatically when an issue loads?").
				Value(&autoStart).
				Affirmative("Yes").
				Negative("No"),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Connection.URL = strings.TrimRight(strings.TrimSpace(serverURL), "/")
	cfg.Connection.APIKey = strings.TrimSpace(apiKey)
	cfg.Connection.IgnoreSSLErrors = ignoreSSL
	cfg.Tracking.AutoStart = autoStart
	return nil
}

func validateServerURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("the tracker URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("the URL must start with http:// or https://")
	}
	if u.Host == "" {
		return fmt.Errorf("the URL needs a host")
	}
	return nil
}

// RunExitPrompt asks what to do with unsaved tracked time before quitting.
func RunExitPrompt(issueID int, clock string) (model.ExitChoice, error) {
	choice := model.ExitSave

	form := newForm(
		huh.NewGroup(
			huh.NewSelect[model.ExitChoice]().
				Title(fmt.Sprintf("%s tracked on issue #%d is not saved yet.", clock, issueID)).
				Options(
					huh.NewOption("Save the time entry and quit", model.ExitSave),
					huh.NewOption("Discard the tracked time and quit", model.ExitDiscard),
					huh.NewOption("Keep tracking", model.ExitCancel),
				).
				Value(&choice),
		),
	)

	if err := form.Run(); err != nil {
		return model.ExitCancel, err
	}
	return choice, nil
}
