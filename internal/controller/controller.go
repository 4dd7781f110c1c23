package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iksnae/hdt-console/internal"
)

var errClosed = errors.New("controller closed")

// Phase is the session lifecycle state
type Phase int

const (
	PhaseNoProfile Phase = iota
	PhaseProfileSelected
	PhaseSessionActive
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseProfileSelected:
		return "profile selected"
	case PhaseSessionActive:
		return "session active"
	case PhaseEnded:
		return "session ended"
	}
	return "no profile"
}

// State is a copy of the controller's state handed to views
type State struct {
	Phase    Phase
	Role     internal.Role
	Profile  *internal.Profile
	Session  *internal.Session
	Controls Controls
}

func controlsFor(p Phase) Controls {
	switch p {
	case PhaseProfileSelected, PhaseEnded:
		return Controls{RoleSelection: true, Start: true}
	case PhaseSessionActive:
		return Controls{End: true, Chat: true}
	}
	return Controls{RoleSelection: true}
}

func (s State) clone() State {
	out := s
	if s.Profile != nil {
		p := *s.Profile
		out.Profile = &p
	}
	if s.Session != nil {
		sess := *s.Session
		out.Session = &sess
	}
	out.Controls = controlsFor(s.Phase)
	return out
}

const (
	DefaultDurationInterval = time.Second
	DefaultMetricsInterval  = 2 * time.Second
	DefaultWorkingHold      = 2 * time.Second
	uploadTimeout           = 10 * time.Second
)

// Option configures a Controller
type Option func(*Controller)

// WithRecorder keeps samples whose upload failed
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithSeed makes the metrics sequence reproducible
func WithSeed(seed uint64) Option {
	return func(c *Controller) { c.gen = NewGenerator(seed) }
}

// WithIntervals overrides the duration and metrics tick intervals
func WithIntervals(duration, metrics time.Duration) Option {
	return func(c *Controller) {
		if duration > 0 {
			c.durationInterval = duration
		}
		if metrics > 0 {
			c.metricsInterval = metrics
		}
	}
}

// WithWorkingHold overrides how long the working cue stays after a reply
func WithWorkingHold(d time.Duration) Option {
	return func(c *Controller) { c.workingHold = d }
}

// Controller mediates between the view, the backend and the avatar
type Controller struct {
	backend  Backend
	avatar   Avatar
	view     View
	recorder Recorder
	gen      *Generator

	durationInterval time.Duration
	metricsInterval  time.Duration
	workingHold      time.Duration

	mu          sync.Mutex
	state       State
	pending     bool // a role change or session start is waiting on the backend
	closed      bool
	stopTimers  context.CancelFunc
	timers      sync.WaitGroup
	sessionFrom time.Time

	workMu    sync.Mutex
	workTimer *time.Timer
	workGen   uint64

	uploads sync.WaitGroup
}

// New creates a controller in the NoProfile phase and shows it on view
func New(backend Backend, avatar Avatar, view View, opts ...Option) *Controller {
	if view == nil {
		view = NopView{}
	}
	c := &Controller{
		backend:          backend,
		avatar:           avatar,
		view:             view,
		gen:              NewGenerator(uint64(time.Now().UnixNano())),
		durationInterval: DefaultDurationInterval,
		metricsInterval:  DefaultMetricsInterval,
		workingHold:      DefaultWorkingHold,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.view.SetState(c.State())
	return c
}

// State returns a copy of the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

func (c *Controller) fail(err error) error {
	internal.LogWarn("%v", err)
	c.view.ShowError(internal.UserMessage(err))
	return err
}

// SelectRole resolves the user's profile for role, creating it when
// missing, and loads the role's avatar
func (c *Controller) SelectRole(ctx context.Context, role internal.Role) error {
	if !role.Valid() {
		return c.fail(&internal.ValidationError{Field: "role", Message: "unknown role " + string(role)})
	}

	if _, err := c.beginTransition(false); err != nil {
		return c.fail(err)
	}

	profile, err := c.resolveProfile(ctx, role)
	c.mu.Lock()
	c.pending = false
	if err != nil {
		c.mu.Unlock()
		return c.fail(err)
	}
	c.state.Role = role
	c.state.Profile = profile
	c.state.Session = nil
	c.state.Phase = PhaseProfileSelected
	state := c.state.clone()
	c.mu.Unlock()

	internal.LogInfo("Selected %s profile %d", role, profile.ProfileID)
	c.view.SetState(state)

	if c.avatar != nil {
		report := c.avatar.LoadRole(ctx, role)
		internal.LogDebug("Avatar for %s: %s", role, report.Avatar)
	}
	return nil
}

// beginTransition claims the right to change the role or start a session.
// Only one such change may wait on the backend at a time, and none while a
// session runs. The caller clears pending when the backend answers.
func (c *Controller) beginTransition(needProfile bool) (profileID int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return 0, errClosed
	case c.state.Phase == PhaseSessionActive:
		return 0, internal.ErrSessionActive
	case c.pending:
		return 0, internal.ErrTransitionPending
	case needProfile && c.state.Profile == nil:
		return 0, internal.ErrNoProfile
	}
	c.pending = true
	if c.state.Profile != nil {
		profileID = c.state.Profile.ProfileID
	}
	return profileID, nil
}

func (c *Controller) resolveProfile(ctx context.Context, role internal.Role) (*internal.Profile, error) {
	profiles, err := c.backend.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	for i := range profiles {
		if profiles[i].RoleType == role {
			return &profiles[i], nil
		}
	}
	return c.backend.CreateProfile(ctx, internal.CreateProfileRequest{RoleType: role, DisplayName: role.Title()})
}

// StartSession opens a session for the selected profile, subscribes to its
// live updates and starts the duration and metrics timers
func (c *Controller) StartSession(ctx context.Context) error {
	profileID, err := c.beginTransition(true)
	if err != nil {
		return c.fail(err)
	}

	session, err := c.backend.StartSession(ctx, profileID)
	c.mu.Lock()
	c.pending = false
	if err != nil {
		c.mu.Unlock()
		return c.fail(err)
	}
	if c.closed {
		c.mu.Unlock()
		internal.LogInfo("Controller closed while session %d was starting; ending it", session.SessionID)
		endCtx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
		defer cancel()
		if _, err := c.backend.EndSession(endCtx, session.SessionID); err != nil {
			internal.LogWarn("Failed to end session %d: %v", session.SessionID, err)
		}
		return errClosed
	}

	timerCtx, cancel := context.WithCancel(context.Background())
	c.state.Session = session
	c.state.Phase = PhaseSessionActive
	c.stopTimers = cancel
	c.sessionFrom = time.Now()
	from := c.sessionFrom
	state := c.state.clone()
	c.mu.Unlock()

	internal.LogInfo("Session %d started", session.SessionID)
	c.backend.SubscribeSession(session.SessionID)
	c.view.SetState(state)
	c.view.SetDuration(FormatDuration(0))

	c.timers.Add(2)
	go c.runDuration(timerCtx, from)
	go c.runMetrics(timerCtx, session.SessionID)
	return nil
}

func (c *Controller) runDuration(ctx context.Context, from time.Time) {
	defer c.timers.Done()
	ticker := time.NewTicker(c.durationInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.view.SetDuration(FormatDuration(now.Sub(from)))
		}
	}
}

func (c *Controller) runMetrics(ctx context.Context, sessionID int) {
	defer c.timers.Done()
	ticker := time.NewTicker(c.metricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(sessionID)
		}
	}
}

// tick produces one sample, shows it, drives the avatar, publishes it on
// the event channel and uploads it in the background
func (c *Controller) tick(sessionID int) {
	sample := c.gen.Next()
	c.view.ShowMetrics(Bars(sample))
	if c.avatar != nil {
		c.avatar.UpdateAvatarState(sample)
	}
	if err := c.backend.PublishPhysiological(sessionID, sample); err != nil {
		internal.LogDebug("Live update for session %d not sent: %v", sessionID, err)
	}

	c.uploads.Add(1)
	go func() {
		defer c.uploads.Done()
		ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
		defer cancel()
		err := c.backend.SubmitPhysiological(ctx, sessionID, sample)
		if err == nil {
			return
		}
		internal.LogDebug("Upload for session %d failed: %v", sessionID, err)
		if c.recorder != nil {
			if rerr := c.recorder.Record(ctx, sessionID, sample, err); rerr != nil {
				internal.LogWarn("Failed to spool sample: %v", rerr)
			}
		}
	}()
}

// EndSession stops the timers and closes the session. Without an active
// session it only resets the controls.
func (c *Controller) EndSession(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Phase != PhaseSessionActive || c.state.Session == nil {
		state := c.state.clone()
		c.mu.Unlock()
		c.view.SetState(state)
		return nil
	}
	stop := c.stopTimers
	c.stopTimers = nil
	sessionID := c.state.Session.SessionID
	c.state.Session.IsActive = false
	c.state.Phase = PhaseEnded
	state := c.state.clone()
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	c.timers.Wait()
	c.backend.UnsubscribeSession(sessionID)
	c.view.SetState(state)

	if _, err := c.backend.EndSession(ctx, sessionID); err != nil {
		return c.fail(err)
	}
	internal.LogInfo("Session %d ended", sessionID)
	return nil
}

// Close ends any active session, cancels the working cue and waits for
// pending uploads
func (c *Controller) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()
	err := c.EndSession(ctx)

	c.workMu.Lock()
	c.workGen++
	if c.workTimer != nil {
		c.workTimer.Stop()
		c.workTimer = nil
	}
	c.workMu.Unlock()

	c.uploads.Wait()
	return err
}

// sampleNow runs one metrics tick immediately. It is a no-op without an
// active session.
func (c *Controller) sampleNow() {
	c.mu.Lock()
	if c.state.Phase != PhaseSessionActive || c.state.Session == nil {
		c.mu.Unlock()
		return
	}
	sessionID := c.state.Session.SessionID
	c.mu.Unlock()
	c.tick(sessionID)
}

// waitUploads blocks until background uploads finish
func (c *Controller) waitUploads() {
	c.uploads.Wait()
}
