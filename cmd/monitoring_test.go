package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/iksnae/hdt-console/internal"
)

// startSession creates a profile and a session, returning their ids
func startSession(t *testing.T, env *cliEnv) (profileID, sessionID int) {
	t.Helper()
	out := env.mustRun(t, "profiles", "create", "--role", "software_engineer", "--display-name", "Dev twin")
	profileID = idFrom(t, out, "Created profile")
	out = env.mustRun(t, "sessions", "start", strconv.Itoa(profileID))
	sessionID = idFrom(t, out, "Session")
	return profileID, sessionID
}

func TestRoles(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "roles")
	for _, want := range []string{"Software Engineer", "(office_worker)", "Factory Worker", "Tasks:"} {
		if !strings.Contains(out, want) {
			t.Errorf("roles output missing %q:\n%s", want, out)
		}
	}
}

func TestProfiles(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)

	if out := env.mustRun(t, "profiles", "list"); !strings.Contains(out, "No profiles yet") {
		t.Errorf("empty list output = %q", out)
	}
	env.mustRun(t, "profiles", "create", "--role", "office_worker", "--display-name", "Desk twin")
	out := env.mustRun(t, "profiles", "list")
	if !strings.Contains(out, "office_worker") || !strings.Contains(out, "Desk twin") {
		t.Errorf("list output = %q", out)
	}
}

func TestProfilesCreateRejectsUnknownRole(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)

	_, err := env.run(t, "profiles", "create", "--role", "astronaut")
	var ve *internal.ValidationError
	if !errors.As(err, &ve) || ve.Field != "role" {
		t.Fatalf("error = %v, want role ValidationError", err)
	}
	if n := env.backend.RequestCount("/hdt/profiles"); n != 0 {
		t.Errorf("profile requests = %d, want 0", n)
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)
	_, sessionID := startSession(t, env)
	id := strconv.Itoa(sessionID)

	out := env.mustRun(t, "sessions", "list")
	if !strings.Contains(out, "ACTIVE") || !strings.Contains(out, "true") {
		t.Errorf("sessions list = %q", out)
	}

	out = env.mustRun(t, "state", id)
	if !strings.Contains(out, "No physiological readings") || !strings.Contains(out, "No activity readings") {
		t.Errorf("state output = %q", out)
	}

	out = env.mustRun(t, "sessions", "end", id)
	if !strings.Contains(out, "Session "+id+" ended after 0s") {
		t.Errorf("end output = %q", out)
	}
	if s := env.backend.Session(sessionID); s == nil || s.IsActive {
		t.Errorf("backend session = %+v, want ended", s)
	}
}

func TestSessionsEndUnknown(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)

	_, err := env.run(t, "sessions", "end", "999")
	var apiErr *internal.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Session not found" {
		t.Errorf("error = %v, want Session not found", err)
	}
}

func TestActivitySubmit(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)
	_, sessionID := startSession(t, env)
	id := strconv.Itoa(sessionID)

	env.mustRun(t, "activity", "submit", id, "--type", "typing", "--app", "vim", "--typing-speed", "64", "--focus", "80")

	reqs := env.backend.Requests("/monitoring/work-activity")
	if len(reqs) != 1 {
		t.Fatalf("activity requests = %d, want 1", len(reqs))
	}
	body := reqs[0].Body
	if body["typing_speed"] != float64(64) || body["application_name"] != "vim" || body["focus_score"] != float64(80) {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["mouse_movements"]; ok {
		t.Errorf("mouse_movements sent without a reading: %v", body)
	}

	out := env.mustRun(t, "state", id)
	if !strings.Contains(out, "Application:    vim") || !strings.Contains(out, "Typing speed:   64 wpm") {
		t.Errorf("state output = %q", out)
	}
}

func TestActivitySubmitBroadcast(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)
	_, sessionID := startSession(t, env)

	out := env.mustRun(t, "activity", "submit", strconv.Itoa(sessionID), "--type", "typing", "--broadcast")
	if !strings.Contains(out, "Activity broadcast to live viewers") {
		t.Errorf("output = %q", out)
	}
	if n := env.backend.RequestCount("/monitoring/work-activity"); n != 1 {
		t.Errorf("activity requests = %d, want 1", n)
	}

	deadline := time.Now().Add(3 * time.Second)
	for !slices.Contains(env.backend.WebsocketEvents(), "activity_update") {
		if time.Now().After(deadline) {
			t.Fatalf("WebsocketEvents() = %v, want activity_update", env.backend.WebsocketEvents())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestActivitySubmitWithoutBroadcastStaysOffChannel(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)
	_, sessionID := startSession(t, env)

	env.mustRun(t, "activity", "submit", strconv.Itoa(sessionID))
	if events := env.backend.WebsocketEvents(); len(events) != 0 {
		t.Errorf("WebsocketEvents() = %v, want none", events)
	}
}

func TestActivitySubmitRejectsFocusOutOfRange(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)

	_, err := env.run(t, "activity", "submit", "1", "--focus", "120")
	var ve *internal.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
}

func TestTasks(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)
	profileID, sessionID := startSession(t, env)
	id := strconv.Itoa(sessionID)

	out := env.mustRun(t, "tasks", "create", id, "--profile", strconv.Itoa(profileID), "--type", "code_generation", "write", "a", "parser")
	if !strings.Contains(out, "completed") || !strings.Contains(out, "done: write a parser") {
		t.Errorf("create output = %q", out)
	}

	out = env.mustRun(t, "tasks", "list", id)
	if !strings.Contains(out, "code_generation") || !strings.Contains(out, "write a parser") {
		t.Errorf("list output = %q", out)
	}

	if _, err := env.run(t, "tasks", "create", id, "no", "profile"); err == nil {
		t.Error("tasks create without --profile succeeded")
	}
}

func TestChatSendAndHistory(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)
	_, sessionID := startSession(t, env)
	id := strconv.Itoa(sessionID)

	out := env.mustRun(t, "chat", "send", id, "write", "python")
	if !strings.Contains(out, "```python\nprint('hello')\n```") {
		t.Errorf("send output = %q, want the reply verbatim", out)
	}

	out = env.mustRun(t, "chat", "history", id, "--format", "jsonl")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], `"message_text":"write python"`) {
		t.Errorf("jsonl history = %q", out)
	}

	dir := filepath.Join(env.home, "exports")
	out = env.mustRun(t, "chat", "history", id, "--format", "md", "--output-dir", dir)
	if !strings.Contains(out, "Exported 2 message(s)") {
		t.Errorf("export output = %q", out)
	}
	data, err := os.ReadFile(filepath.Join(dir, "session-"+id+".md"))
	if err != nil {
		t.Fatalf("export file: %v", err)
	}
	if !strings.Contains(string(data), "# Session "+id) {
		t.Errorf("export file = %q", data)
	}
}

func TestChatHistoryRejectsUnknownFormat(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t)

	_, err := env.run(t, "chat", "history", "1", "--format", "xml")
	var ve *internal.ValidationError
	if !errors.As(err, &ve) || ve.Field != "format" {
		t.Errorf("error = %v, want format ValidationError", err)
	}
}
