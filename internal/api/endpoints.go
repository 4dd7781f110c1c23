package api

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/iksnae/hdt-console/internal"
)

// RegisterRequest is the body of an account registration
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// Validate checks required fields before any request is issued
func (r RegisterRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Username) == "":
		return &internal.ValidationError{Field: "username", Message: "is required"}
	case strings.TrimSpace(r.Email) == "":
		return &internal.ValidationError{Field: "email", Message: "is required"}
	case !strings.Contains(r.Email, "@"):
		return &internal.ValidationError{Field: "email", Message: "must be an email address"}
	case r.Password == "":
		return &internal.ValidationError{Field: "password", Message: "is required"}
	}
	return nil
}

type userEnvelope struct {
	User *internal.User `json:"user"`
}

func (e *userEnvelope) Validate() error {
	if e.User == nil {
		return &internal.DecodeError{Field: "user", Err: errMissing}
	}
	return e.User.Validate()
}

type loginEnvelope struct {
	Token string         `json:"token"`
	User  *internal.User `json:"user"`
}

func (e *loginEnvelope) Validate() error {
	if e.Token == "" {
		return &internal.DecodeError{Field: "token", Err: errMissing}
	}
	if e.User == nil {
		return &internal.DecodeError{Field: "user", Err: errMissing}
	}
	return e.User.Validate()
}

type profilesEnvelope struct {
	Profiles []internal.Profile `json:"profiles"`
}

func (e *profilesEnvelope) Validate() error {
	for i := range e.Profiles {
		if err := e.Profiles[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

type profileEnvelope struct {
	Profile *internal.Profile `json:"profile"`
}

func (e *profileEnvelope) Validate() error {
	if e.Profile == nil {
		return &internal.DecodeError{Field: "profile", Err: errMissing}
	}
	return e.Profile.Validate()
}

type rolesEnvelope struct {
	Roles map[internal.Role]internal.RoleCapabilities `json:"roles"`
}

func (e *rolesEnvelope) Validate() error {
	if e.Roles == nil {
		return &internal.DecodeError{Field: "roles", Err: errMissing}
	}
	return nil
}

type sessionEnvelope struct {
	Session *internal.Session `json:"session"`
}

func (e *sessionEnvelope) Validate() error {
	if e.Session == nil {
		return &internal.DecodeError{Field: "session", Err: errMissing}
	}
	return e.Session.Validate()
}

type sessionsEnvelope struct {
	Sessions []internal.Session `json:"sessions"`
}

func (e *sessionsEnvelope) Validate() error {
	for i := range e.Sessions {
		if err := e.Sessions[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

type taskEnvelope struct {
	Task *internal.Task `json:"task"`
}

func (e *taskEnvelope) Validate() error {
	if e.Task == nil {
		return &internal.DecodeError{Field: "task", Err: errMissing}
	}
	return e.Task.Validate()
}

type tasksEnvelope struct {
	Tasks []internal.Task `json:"tasks"`
}

func (e *tasksEnvelope) Validate() error {
	for i := range e.Tasks {
		if err := e.Tasks[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

type messagesEnvelope struct {
	Messages []internal.ChatMessage `json:"messages"`
}

type chatReplyEnvelope internal.ChatReply

func (e *chatReplyEnvelope) Validate() error {
	if e.Success && e.Response == "" {
		return &internal.DecodeError{Field: "response", Err: errMissing}
	}
	return nil
}

// physiologicalPayload is the upload body; the backend stores heart rate
// as an integer
type physiologicalPayload struct {
	SessionID     int            `json:"session_id"`
	HeartRate     int            `json:"heart_rate"`
	StressLevel   float64        `json:"stress_level"`
	CognitiveLoad float64        `json:"cognitive_load"`
	FatigueScore  float64        `json:"fatigue_score"`
	PostureScore  float64        `json:"posture_score"`
	RawSensorData map[string]any `json:"raw_sensor_data,omitempty"`
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*internal.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var out userEnvelope
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &out); err != nil {
		return nil, err
	}
	internal.LogInfo("Registered user %s", out.User.Username)
	return out.User, nil
}

// Login authenticates and persists the issued token
func (c *Client) Login(ctx context.Context, username, password string) (*internal.User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, &internal.ValidationError{Field: "username", Message: "is required"}
	}
	if password == "" {
		return nil, &internal.ValidationError{Field: "password", Message: "is required"}
	}
	body := map[string]string{"username": username, "password": password}
	var out loginEnvelope
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return nil, err
	}
	if err := c.setToken(out.Token); err != nil {
		internal.LogWarn("Failed to persist token: %v", err)
	}
	internal.LogInfo("Logged in as %s", out.User.Username)
	return out.User, nil
}

// RegisterAndLogin registers an account and logs in with the same
// credentials, so the caller ends up authenticated in one step
func (c *Client) RegisterAndLogin(ctx context.Context, req RegisterRequest) (*internal.User, error) {
	if _, err := c.Register(ctx, req); err != nil {
		return nil, err
	}
	return c.Login(ctx, req.Username, req.Password)
}

// Logout forgets the token and closes the event channel if open
func (c *Client) Logout() error {
	c.mu.Lock()
	ch := c.channel
	c.channel = nil
	c.mu.Unlock()
	if ch != nil {
		ch.Close()
	}
	return c.setToken("")
}

// CurrentUser returns the authenticated user
func (c *Client) CurrentUser(ctx context.Context) (*internal.User, error) {
	var out userEnvelope
	if err := c.authed(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// ListProfiles returns the user's profiles
func (c *Client) ListProfiles(ctx context.Context) ([]internal.Profile, error) {
	var out profilesEnvelope
	if err := c.authed(ctx, http.MethodGet, "/hdt/profiles", nil, &out); err != nil {
		return nil, err
	}
	return out.Profiles, nil
}

// CreateProfile creates a profile for a role
func (c *Client) CreateProfile(ctx context.Context, req internal.CreateProfileRequest) (*internal.Profile, error) {
	if !req.RoleType.Valid() {
		return nil, &internal.ValidationError{Field: "role_type", Message: fmt.Sprintf("unknown role %q", req.RoleType)}
	}
	var out profileEnvelope
	if err := c.authed(ctx, http.MethodPost, "/hdt/profiles", req, &out); err != nil {
		return nil, err
	}
	return out.Profile, nil
}

// ListRoles returns the capabilities of every role. It needs no token.
func (c *Client) ListRoles(ctx context.Context) (map[internal.Role]internal.RoleCapabilities, error) {
	var out rolesEnvelope
	if err := c.do(ctx, http.MethodGet, "/hdt/roles", nil, &out); err != nil {
		return nil, err
	}
	return out.Roles, nil
}

// StartSession opens a monitoring session for a profile
func (c *Client) StartSession(ctx context.Context, profileID int) (*internal.Session, error) {
	var out sessionEnvelope
	body := map[string]int{"profile_id": profileID}
	if err := c.authed(ctx, http.MethodPost, "/sessions/start", body, &out); err != nil {
		return nil, err
	}
	return out.Session, nil
}

// EndSession closes a monitoring session
func (c *Client) EndSession(ctx context.Context, sessionID int) (*internal.Session, error) {
	var out sessionEnvelope
	path := "/sessions/" + strconv.Itoa(sessionID) + "/end"
	if err := c.authed(ctx, http.MethodPost, path, struct{}{}, &out); err != nil {
		return nil, err
	}
	return out.Session, nil
}

// ListSessions returns the user's most recent sessions
func (c *Client) ListSessions(ctx context.Context) ([]internal.Session, error) {
	var out sessionsEnvelope
	if err := c.authed(ctx, http.MethodGet, "/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// SubmitPhysiological uploads one metrics sample
func (c *Client) SubmitPhysiological(ctx context.Context, sessionID int, sample internal.MetricsSample) error {
	if err := sample.Validate(); err != nil {
		return err
	}
	body := physiologicalPayload{
		SessionID:     sessionID,
		HeartRate:     int(math.Round(sample.HeartRate)),
		StressLevel:   sample.StressLevel,
		CognitiveLoad: sample.CognitiveLoad,
		FatigueScore:  sample.FatigueScore,
		PostureScore:  sample.PostureScore,
		RawSensorData: map[string]any{"source": "simulated"},
	}
	return c.authed(ctx, http.MethodPost, "/monitoring/physiological", body, nil)
}

// SubmitActivity uploads one work activity sample
func (c *Client) SubmitActivity(ctx context.Context, sample internal.ActivitySample) error {
	if sample.SessionID <= 0 {
		return &internal.ValidationError{Field: "session_id", Message: "is required"}
	}
	return c.authed(ctx, http.MethodPost, "/monitoring/work-activity", sample, nil)
}

// CurrentState returns the latest readings of a session
func (c *Client) CurrentState(ctx context.Context, sessionID int) (*internal.CurrentState, error) {
	var out internal.CurrentState
	path := "/monitoring/current-state/" + strconv.Itoa(sessionID)
	if err := c.authed(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTask asks the AI backend to execute a task
func (c *Client) CreateTask(ctx context.Context, req internal.CreateTaskRequest) (*internal.Task, error) {
	if strings.TrimSpace(req.Command) == "" {
		return nil, &internal.ValidationError{Field: "command", Message: "is required"}
	}
	if req.SessionID <= 0 || req.ProfileID <= 0 {
		return nil, &internal.ValidationError{Field: "session_id", Message: "session and profile are required"}
	}
	var out taskEnvelope
	if err := c.authed(ctx, http.MethodPost, "/tasks", req, &out); err != nil {
		return nil, err
	}
	return out.Task, nil
}

// ListTasks returns recent tasks, optionally for one session (0 for all)
func (c *Client) ListTasks(ctx context.Context, sessionID int) ([]internal.Task, error) {
	path := "/tasks"
	if sessionID > 0 {
		path += "?" + url.Values{"session_id": {strconv.Itoa(sessionID)}}.Encode()
	}
	var out tasksEnvelope
	if err := c.authed(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// SendChat sends a chat message within a session
func (c *Client) SendChat(ctx context.Context, sessionID int, message string) (*internal.ChatReply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, &internal.ValidationError{Field: "message", Message: "is empty"}
	}
	var out chatReplyEnvelope
	body := map[string]any{"session_id": sessionID, "message": message}
	if err := c.authed(ctx, http.MethodPost, "/chat", body, &out); err != nil {
		return nil, err
	}
	reply := internal.ChatReply(out)
	return &reply, nil
}

// ChatHistory returns the stored transcript of a session
func (c *Client) ChatHistory(ctx context.Context, sessionID int) ([]internal.ChatMessage, error) {
	var out messagesEnvelope
	path := "/chat/history/" + strconv.Itoa(sessionID)
	if err := c.authed(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// HealthStatus is the backend's /health response
type HealthStatus struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
}

// Health checks the backend's health endpoint. An unhealthy backend answers
// 503 and surfaces as an *internal.APIError.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	err := c.doURL(ctx, http.MethodGet, c.origin+"/health", "/health", nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// authed runs do after checking a token is present
func (c *Client) authed(ctx context.Context, method, path string, body, out any) error {
	if !c.Authenticated() {
		return internal.ErrNotAuthenticated
	}
	return c.do(ctx, method, path, body, out)
}
