// Package controller owns the monitoring session lifecycle: role and
// profile selection, the duration timer, the synthetic metrics loop and the
// chat transcript.
package controller

import (
	"context"

	"github.com/iksnae/hdt-console/internal"
	"github.com/iksnae/hdt-console/internal/scene"
)

// Backend is the part of the transport client the controller uses
type Backend interface {
	ListProfiles(ctx context.Context) ([]internal.Profile, error)
	CreateProfile(ctx context.Context, req internal.CreateProfileRequest) (*internal.Profile, error)
	StartSession(ctx context.Context, profileID int) (*internal.Session, error)
	EndSession(ctx context.Context, sessionID int) (*internal.Session, error)
	SubmitPhysiological(ctx context.Context, sessionID int, sample internal.MetricsSample) error
	SendChat(ctx context.Context, sessionID int, message string) (*internal.ChatReply, error)
	SubscribeSession(sessionID int)
	UnsubscribeSession(sessionID int)
	PublishPhysiological(sessionID int, sample internal.MetricsSample) error
}

// Avatar is the part of the scene renderer the controller drives
type Avatar interface {
	LoadRole(ctx context.Context, role internal.Role) scene.LoadReport
	UpdateAvatarState(sample internal.MetricsSample)
}

// Recorder keeps samples whose upload failed
type Recorder interface {
	Record(ctx context.Context, sessionID int, sample internal.MetricsSample, cause error) error
}

// View presents controller state. Implementations must not block for long;
// the timers call into it.
type View interface {
	SetState(state State)
	SetDuration(text string)
	ShowMetrics(bars []MetricBar)
	AppendEntry(entry Entry)
	SetWorking(working bool)
	ShowError(message string)
}

// Controls is which controls are offered in the current phase
type Controls struct {
	RoleSelection bool
	Start         bool
	End           bool
	Chat          bool
}

// MetricBar is one rendered metric
type MetricBar struct {
	Key     string
	Name    string
	Value   float64
	Percent float64 // bar width, clamped to [0,100]
	Label   string  // rounded value
	Class   string  // calm, warning or alert
}

// EntryRole is the author of a transcript entry
type EntryRole string

const (
	EntryUser      EntryRole = "user"
	EntryAssistant EntryRole = "assistant"
	EntrySystem    EntryRole = "system"
)

// Segment is a run of transcript text; code segments come from fenced
// blocks and are shown preformatted
type Segment struct {
	Code     bool
	Language string
	Text     string
}

// Entry is one transcript item
type Entry struct {
	Role     EntryRole
	Segments []Segment
}

// Text joins the entry's segments back into plain text
func (e Entry) Text() string {
	out := ""
	for _, s := range e.Segments {
		out += s.Text
	}
	return out
}

// NopView discards everything
type NopView struct{}

func (NopView) SetState(State)          {}
func (NopView) SetDuration(string)      {}
func (NopView) ShowMetrics([]MetricBar) {}
func (NopView) AppendEntry(Entry)       {}
func (NopView) SetWorking(bool)         {}
func (NopView) ShowError(string)        {}
