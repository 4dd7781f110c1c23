package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/hdt-console/internal"
	"github.com/iksnae/hdt-console/internal/api"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// app bundles what every command needs: settings and a client whose token
// lives in the credential file
type app struct {
	cfg    *internal.Config
	client *api.Client
}

func newApp() (*app, error) {
	cfg, err := internal.LoadConfig(envFile, map[string]string{
		"HDT_API_URL": apiURL,
		"HDT_HOME":    homeDir,
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureHome(); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", cfg.Home, err)
	}
	internal.LogDebug("API %s, events %s, home %s", cfg.APIURL, cfg.WSURL, cfg.Home)

	client, err := api.NewClient(api.ClientConfig{
		BaseURL:     cfg.APIURL,
		Origin:      cfg.Origin(),
		WSURL:       cfg.WSURL,
		Credentials: internal.NewFileCredentialStore(cfg.CredentialsPath()),
		Timeout:     cfg.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, client: client}, nil
}

// newAuthedApp is newApp for commands that need a stored login
func newAuthedApp() (*app, error) {
	a, err := newApp()
	if err != nil {
		return nil, err
	}
	if !a.client.Authenticated() {
		return nil, fmt.Errorf("%w: run 'hdt-console login' first", internal.ErrNotAuthenticated)
	}
	return a, nil
}

func parseID(name, s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, &internal.ValidationError{Field: name, Message: fmt.Sprintf("must be a positive number, got %q", s)}
	}
	return id, nil
}

// readSecret prompts on a terminal without echo, otherwise reads one line
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
