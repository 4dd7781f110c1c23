package cmd

import (
	"errors"
	"strings"
	"testing"

	"github.com/iksnae/hdt-console/internal"
)

func TestRootCommand(t *testing.T) {
	env := newCLIEnv(t)

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{name: "version flag", args: []string{"--version"}, want: "dev (commit: unknown"},
		{name: "help flag", args: []string{"--help"}, want: "hdt-console"},
		{name: "nonexistent command", args: []string{"nonexistent-command"}, wantErr: true},
		{name: "missing argument", args: []string{"sessions", "end"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := env.run(t, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output = %q, want it to contain %q", out, tt.want)
			}
		})
	}
}

func TestCommandsRequireLogin(t *testing.T) {
	env := newCLIEnv(t)

	for _, args := range [][]string{
		{"whoami"},
		{"profiles", "list"},
		{"sessions", "list"},
		{"state", "1"},
		{"tasks", "list"},
		{"chat", "history", "1"},
		{"watch", "1"},
		{"dashboard"},
		{"spool", "flush"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, err := env.run(t, args...)
			if !errors.Is(err, internal.ErrNotAuthenticated) {
				t.Errorf("error = %v, want ErrNotAuthenticated", err)
			}
		})
	}
	if n := env.backend.TotalRequests(); n != 0 {
		t.Errorf("backend saw %d requests, want 0", n)
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "12", want: 12},
		{in: "0", wantErr: true},
		{in: "-3", wantErr: true},
		{in: "abc", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseID("session_id", tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseID(%q) = %d, %v", tt.in, got, err)
		}
		var ve *internal.ValidationError
		if tt.wantErr && !errors.As(err, &ve) {
			t.Errorf("parseID(%q) error = %T, want *ValidationError", tt.in, err)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("line one\nline two is long", 12); got != "line one ..." {
		t.Errorf("truncate() = %q", got)
	}
}
