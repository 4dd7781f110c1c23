package internal

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role is the worker persona a digital twin models
type Role string

const (
	RoleSoftwareEngineer Role = "software_engineer"
	RoleOfficeWorker     Role = "office_worker"
	RoleFactoryWorker    Role = "factory_worker"
)

// Roles lists every known role in display order
var Roles = []Role{RoleSoftwareEngineer, RoleOfficeWorker, RoleFactoryWorker}

// ParseRole converts a string to a Role, rejecting unknown values
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(strings.ToLower(s)))
	if !r.Valid() {
		return "", &ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", s)}
	}
	return r, nil
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleSoftwareEngineer, RoleOfficeWorker, RoleFactoryWorker:
		return true
	}
	return false
}

// Title returns a human readable role name, e.g. "Software Engineer"
func (r Role) Title() string {
	words := strings.Split(string(r), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// User is an account on the backend
type User struct {
	UserID    int    `json:"user_id" yaml:"user_id"`
	Username  string `json:"username" yaml:"username"`
	Email     string `json:"email" yaml:"email"`
	FullName  string `json:"full_name,omitempty" yaml:"full_name,omitempty"`
	CreatedAt string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	IsActive  bool   `json:"is_active" yaml:"is_active"`
}

// Validate checks the fields the client depends on
func (u *User) Validate() error {
	if u.UserID <= 0 {
		return fieldError("user_id", "must be positive")
	}
	if u.Username == "" {
		return fieldError("username", "is required")
	}
	return nil
}

// RoleCapabilities describes what the AI twin can do for a role
type RoleCapabilities struct {
	Tasks       []string `json:"tasks" yaml:"tasks"`
	Description string   `json:"description" yaml:"description"`
	Languages   []string `json:"languages,omitempty" yaml:"languages,omitempty"`
	Tools       []string `json:"tools,omitempty" yaml:"tools,omitempty"`
	Focus       []string `json:"focus,omitempty" yaml:"focus,omitempty"`
}

// Profile is a role-scoped persona owned by a user
type Profile struct {
	ProfileID       int               `json:"profile_id" yaml:"profile_id"`
	UserID          int               `json:"user_id" yaml:"user_id"`
	RoleType        Role              `json:"role_type" yaml:"role_type"`
	DisplayName     string            `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	AvatarModelPath string            `json:"avatar_model_path,omitempty" yaml:"avatar_model_path,omitempty"`
	Capabilities    *RoleCapabilities `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Preferences     map[string]any    `json:"preferences,omitempty" yaml:"preferences,omitempty"`
	CreatedAt       string            `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Validate checks the fields the client depends on
func (p *Profile) Validate() error {
	if p.ProfileID <= 0 {
		return fieldError("profile_id", "must be positive")
	}
	if !p.RoleType.Valid() {
		return fieldError("role_type", fmt.Sprintf("unknown role %q", p.RoleType))
	}
	return nil
}

// CreateProfileRequest is the body of a profile creation
type CreateProfileRequest struct {
	RoleType    Role           `json:"role_type"`
	DisplayName string         `json:"display_name,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
}

// Session is a bounded monitoring period
type Session struct {
	SessionID           int    `json:"session_id" yaml:"session_id"`
	UserID              int    `json:"user_id" yaml:"user_id"`
	ProfileID           int    `json:"profile_id" yaml:"profile_id"`
	StartTime           string `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	EndTime             string `json:"end_time,omitempty" yaml:"end_time,omitempty"`
	SessionDuration     *int   `json:"session_duration,omitempty" yaml:"session_duration,omitempty"`
	TotalTasksCompleted int    `json:"total_tasks_completed" yaml:"total_tasks_completed"`
	IsActive            bool   `json:"is_active" yaml:"is_active"`
}

// Validate checks the fields the client depends on
func (s *Session) Validate() error {
	if s.SessionID <= 0 {
		return fieldError("session_id", "must be positive")
	}
	return nil
}

// MetricsSample is one synthetic reading of physiological and work indicators
type MetricsSample struct {
	HeartRate     float64 `json:"heart_rate" yaml:"heart_rate"`
	StressLevel   float64 `json:"stress_level" yaml:"stress_level"`
	CognitiveLoad float64 `json:"cognitive_load" yaml:"cognitive_load"`
	FatigueScore  float64 `json:"fatigue_score" yaml:"fatigue_score"`
	PostureScore  float64 `json:"posture_score" yaml:"posture_score"`
}

// Validate checks every field is inside its bounds
func (s MetricsSample) Validate() error {
	if s.HeartRate < 0 || s.HeartRate > 250 {
		return &ValidationError{Field: "heart_rate", Message: "must be within [0, 250]"}
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"stress_level", s.StressLevel},
		{"cognitive_load", s.CognitiveLoad},
		{"fatigue_score", s.FatigueScore},
		{"posture_score", s.PostureScore},
	} {
		if f.v < 0 || f.v > 100 {
			return &ValidationError{Field: f.name, Message: "must be within [0, 100]"}
		}
	}
	return nil
}

// PhysiologicalReading is a stored sample as returned by the backend.
// Every metric may be null.
type PhysiologicalReading struct {
	DataID        int      `json:"data_id,omitempty" yaml:"data_id,omitempty"`
	SessionID     int      `json:"session_id" yaml:"session_id"`
	Timestamp     string   `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	HeartRate     *float64 `json:"heart_rate" yaml:"heart_rate"`
	StressLevel   *float64 `json:"stress_level" yaml:"stress_level"`
	CognitiveLoad *float64 `json:"cognitive_load" yaml:"cognitive_load"`
	FatigueScore  *float64 `json:"fatigue_score" yaml:"fatigue_score"`
	PostureScore  *float64 `json:"posture_score" yaml:"posture_score"`
}

// Sample converts the reading to a MetricsSample, treating nulls as zero
func (r *PhysiologicalReading) Sample() MetricsSample {
	deref := func(p *float64) float64 {
		if p == nil {
			return 0
		}
		return *p
	}
	return MetricsSample{
		HeartRate:     deref(r.HeartRate),
		StressLevel:   deref(r.StressLevel),
		CognitiveLoad: deref(r.CognitiveLoad),
		FatigueScore:  deref(r.FatigueScore),
		PostureScore:  deref(r.PostureScore),
	}
}

// ActivitySample is one reading of work activity
type ActivitySample struct {
	ActivityID      int      `json:"activity_id,omitempty" yaml:"activity_id,omitempty"`
	SessionID       int      `json:"session_id" yaml:"session_id"`
	Timestamp       string   `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	ActivityType    string   `json:"activity_type,omitempty" yaml:"activity_type,omitempty"`
	TypingSpeed     *int     `json:"typing_speed,omitempty" yaml:"typing_speed,omitempty"`
	MouseMovements  *int     `json:"mouse_movements,omitempty" yaml:"mouse_movements,omitempty"`
	ApplicationName string   `json:"application_name,omitempty" yaml:"application_name,omitempty"`
	FocusScore      *float64 `json:"focus_score,omitempty" yaml:"focus_score,omitempty"`
}

// CurrentState is the latest known state of a session
type CurrentState struct {
	Physiological *PhysiologicalReading `json:"physiological" yaml:"physiological"`
	Activity      *ActivitySample       `json:"activity" yaml:"activity"`
}

// Task is an AI task executed by the backend
type Task struct {
	TaskID       int            `json:"task_id" yaml:"task_id"`
	SessionID    int            `json:"session_id" yaml:"session_id"`
	TaskType     string         `json:"task_type,omitempty" yaml:"task_type,omitempty"`
	CommandText  string         `json:"command_text" yaml:"command_text"`
	TaskStatus   string         `json:"task_status" yaml:"task_status"`
	Priority     int            `json:"priority" yaml:"priority"`
	CreatedAt    string         `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	CompletedAt  string         `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	ResultData   map[string]any `json:"result_data,omitempty" yaml:"result_data,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

// Validate checks the fields the client depends on
func (t *Task) Validate() error {
	if t.TaskID <= 0 {
		return fieldError("task_id", "must be positive")
	}
	return nil
}

// CreateTaskRequest is the body of a task creation
type CreateTaskRequest struct {
	SessionID int            `json:"session_id"`
	ProfileID int            `json:"profile_id"`
	TaskType  string         `json:"task_type,omitempty"`
	Command   string         `json:"command"`
	Priority  int            `json:"priority,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// ChatReply is the backend's answer to a chat message
type ChatReply struct {
	Response string `json:"response"`
	Success  bool   `json:"success"`
}

// ChatMessage is one stored chat turn
type ChatMessage struct {
	InteractionID int    `json:"interaction_id,omitempty" yaml:"interaction_id,omitempty"`
	Timestamp     string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Role          string `json:"role" yaml:"role"` // "user", "assistant", "system"
	MessageText   string `json:"message_text" yaml:"message_text"`
}

// ChatHistory is the transcript of one session, as exported
type ChatHistory struct {
	SessionID  int           `json:"session_id" yaml:"session_id"`
	ExportedAt string        `json:"exported_at,omitempty" yaml:"exported_at,omitempty"`
	Messages   []ChatMessage `json:"messages" yaml:"messages"`
}

// ParseTimestamp parses the backend's ISO-8601 timestamps, which may omit
// the zone offset
func ParseTimestamp(s string) (time.Time, error) {
	layouts := []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

func fieldError(field, msg string) error {
	return &DecodeError{Field: field, Err: errors.New(msg)}
}
