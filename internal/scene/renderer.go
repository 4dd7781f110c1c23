package scene

import (
	"context"
	"sync"
	"time"

	"github.com/iksnae/hdt-console/internal"
)

// Phase is the renderer's load state
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDisposing
	PhaseLoadingDetailed
	PhaseFallback
	PhaseLoadingEnvironment
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseDisposing:
		return "disposing"
	case PhaseLoadingDetailed:
		return "loading"
	case PhaseFallback:
		return "fallback"
	case PhaseLoadingEnvironment:
		return "loading environment"
	case PhaseReady:
		return "ready"
	}
	return "idle"
}

// AvatarKind tells which avatar is resident
type AvatarKind int

const (
	AvatarNone AvatarKind = iota
	AvatarDetailed
	AvatarFallback
)

func (k AvatarKind) String() string {
	switch k {
	case AvatarDetailed:
		return "detailed"
	case AvatarFallback:
		return "procedural"
	}
	return "none"
}

// DefaultFrameRate is the render loop rate when none is configured
const DefaultFrameRate = 30

// AvatarPath returns the asset path of a role's avatar
func AvatarPath(role internal.Role) string {
	return "models/avatars/" + string(role) + ".glb"
}

// EnvironmentPath returns the asset path of an environment piece
func EnvironmentPath(name string) string {
	return "models/environment/" + name + ".glb"
}

// Frame is a read-only snapshot of the scene, presented once per tick
type Frame struct {
	Seq               uint64
	Elapsed           time.Duration
	Size              Size
	Camera            Camera
	Phase             Phase
	Role              internal.Role
	Avatar            AvatarKind
	AvatarMeshes      int
	Environment       []string
	MeshCount         int
	Clip              string
	ClipTime          time.Duration
	HasSample         bool
	Stress            float64
	Band              internal.StressBand
	Emissive          Color
	EmissiveIntensity float64
	Bob               float64
	Sway              float64
}

// Surface receives rendered frames
type Surface interface {
	Resize(size Size)
	Present(frame Frame)
	Release()
}

type nopSurface struct{}

func (nopSurface) Resize(Size)   {}
func (nopSurface) Present(Frame) {}
func (nopSurface) Release()      {}

// LoadReport describes the outcome of a role load. Failures are recorded
// here and logged; LoadRole never fails.
type LoadReport struct {
	Role            internal.Role
	Avatar          AvatarKind
	AvatarErr       error
	Environment     []string
	EnvironmentErrs map[string]error
	UsedPrimitives  bool
	Skipped         bool
}

// Option configures a Renderer
type Option func(*Renderer)

// WithAvatarLoader sets the loader for detailed avatar models
func WithAvatarLoader(l AssetLoader) Option {
	return func(r *Renderer) { r.avatarLoader = l }
}

// WithEnvironmentLoader sets the loader for environment assets. Without
// one the environment is two primitives.
func WithEnvironmentLoader(l AssetLoader) Option {
	return func(r *Renderer) { r.envLoader = l }
}

// WithFrameRate sets the render loop rate
func WithFrameRate(fps int) Option {
	return func(r *Renderer) {
		if fps > 0 {
			r.interval = time.Second / time.Duration(fps)
		}
	}
}

// Renderer owns the scene: one avatar, its environment and the render loop
type Renderer struct {
	surface      Surface
	avatarLoader AssetLoader
	envLoader    AssetLoader
	interval     time.Duration

	// loadMu serializes role loads; mu guards everything below
	loadMu sync.Mutex
	mu     sync.Mutex

	scene       Scene
	avatar      *Node
	avatarKind  AvatarKind
	environment []*Node
	mixer       Mixer
	phase       Phase
	role        internal.Role

	camera  Camera
	size    Size
	elapsed time.Duration
	seq     uint64

	hasSample bool
	stress    float64
	band      internal.StressBand
	emissive  Color
	intensity float64

	started      bool
	cancel       context.CancelFunc
	loopDone     chan struct{}
	detachResize func()
	disposed     bool
}

// NewRenderer creates a renderer presenting to surface. A nil surface
// discards frames.
func NewRenderer(surface Surface, opts ...Option) *Renderer {
	if surface == nil {
		surface = nopSurface{}
	}
	r := &Renderer{
		surface:   surface,
		interval:  time.Second / DefaultFrameRate,
		camera:    defaultCamera(),
		emissive:  ColorCalm,
		intensity: internal.MinEmissiveIntensity,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start runs the render loop until ctx is done or Dispose is called.
// Calling Start again has no effect.
func (r *Renderer) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.disposed {
		return
	}
	r.started = true
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.loopDone = make(chan struct{})
	go r.loop(loopCtx)
}

func (r *Renderer) loop(ctx context.Context) {
	defer close(r.loopDone)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			frame := r.advance(now.Sub(last))
			last = now
			r.surface.Present(frame)
		}
	}
}

// advance moves animations forward by dt and returns the new frame
func (r *Renderer) advance(dt time.Duration) Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.elapsed += dt
	r.seq++
	r.mixer.Update(dt)
	if r.avatar != nil && r.avatarKind == AvatarFallback {
		bob, sway := idleMotion(r.elapsed)
		r.avatar.Position.Y = bob
		r.avatar.Rotation.Y = sway
	}
	return r.frameLocked()
}

// Snapshot returns the current frame without advancing time
func (r *Renderer) Snapshot() Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frameLocked()
}

func (r *Renderer) frameLocked() Frame {
	f := Frame{
		Seq:               r.seq,
		Elapsed:           r.elapsed,
		Size:              r.size,
		Camera:            r.camera,
		Phase:             r.phase,
		Role:              r.role,
		Avatar:            r.avatarKind,
		MeshCount:         r.scene.MeshCount(),
		Clip:              r.mixer.Playing(),
		ClipTime:          r.mixer.Time(),
		HasSample:         r.hasSample,
		Stress:            r.stress,
		Band:              r.band,
		Emissive:          r.emissive,
		EmissiveIntensity: r.intensity,
	}
	if r.avatar != nil {
		f.AvatarMeshes = r.avatar.MeshCount()
		if r.avatarKind == AvatarFallback {
			f.Bob = r.avatar.Position.Y
			f.Sway = r.avatar.Rotation.Y
		}
	}
	for _, n := range r.environment {
		f.Environment = append(f.Environment, n.Name)
	}
	return f
}

// LoadRole replaces the avatar and environment for role. The previous
// avatar is removed and disposed before the next is added, so the scene
// never holds two. Asset failures fall back to procedural geometry.
func (r *Renderer) LoadRole(ctx context.Context, role internal.Role) LoadReport {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	report := LoadReport{Role: role}

	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		report.Skipped = true
		return report
	}
	r.phase = PhaseDisposing
	r.clearLocked()
	r.role = role
	r.phase = PhaseLoadingDetailed
	r.mu.Unlock()

	avatar, clips, err := r.loadAvatar(ctx, role)
	report.AvatarErr = err

	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		if avatar != nil {
			avatar.Dispose()
		}
		report.Skipped = true
		return report
	}
	if err != nil || avatar == nil {
		if err != nil {
			internal.LogWarn("Avatar model for %s unavailable, using procedural avatar: %v", role, err)
		}
		r.phase = PhaseFallback
		avatar = fallbackAvatar(role)
		r.avatarKind = AvatarFallback
	} else {
		r.avatarKind = AvatarDetailed
		if len(clips) > 0 {
			r.mixer.Play(clips[0])
		}
	}
	r.avatar = avatar
	r.scene.Add(avatar)
	r.applyEmissiveLocked()
	report.Avatar = r.avatarKind
	r.phase = PhaseLoadingEnvironment
	r.mu.Unlock()

	env, errs := r.loadEnvironment(ctx)
	report.EnvironmentErrs = errs
	report.UsedPrimitives = r.envLoader == nil

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		for _, n := range env {
			n.Dispose()
		}
		report.Skipped = true
		return report
	}
	for _, n := range env {
		r.scene.Add(n)
		report.Environment = append(report.Environment, n.Name)
	}
	r.environment = env
	r.phase = PhaseReady
	internal.LogDebug("Scene ready for %s: %s avatar, environment %v", role, r.avatarKind, report.Environment)
	return report
}

// loadAvatar returns the detailed model, or a nil node when there is no
// avatar loader
func (r *Renderer) loadAvatar(ctx context.Context, role internal.Role) (*Node, []Clip, error) {
	if r.avatarLoader == nil {
		return nil, nil, nil
	}
	model, err := r.avatarLoader.Load(ctx, AvatarPath(role))
	if err != nil {
		return nil, nil, err
	}
	model.Normalize(AvatarHeight)
	model.Root.Walk(func(m *Mesh) {
		m.CastShadow = true
	})
	model.Root.Name = "avatar:" + string(role)
	return model.Root, model.Clips, nil
}

// loadEnvironment loads every piece independently; one failing does not
// stop the others
func (r *Renderer) loadEnvironment(ctx context.Context) ([]*Node, map[string]error) {
	if r.envLoader == nil {
		return environmentPrimitives(), nil
	}
	var nodes []*Node
	var errs map[string]error
	for _, piece := range environmentPieces {
		model, err := r.envLoader.Load(ctx, EnvironmentPath(piece.Name))
		if err != nil {
			internal.LogWarn("Environment asset %s failed to load: %v", piece.Name, err)
			if errs == nil {
				errs = make(map[string]error)
			}
			errs[piece.Name] = err
			continue
		}
		model.Root.Name = piece.Name
		model.Root.Position = model.Root.Position.Add(piece.Position)
		model.Root.Walk(func(m *Mesh) {
			m.CastShadow = true
			m.ReceiveShadow = true
		})
		nodes = append(nodes, model.Root)
	}
	return nodes, errs
}

// clearLocked removes and disposes the avatar and environment
func (r *Renderer) clearLocked() {
	if r.avatar != nil {
		r.scene.Remove(r.avatar)
		r.avatar.Dispose()
		r.avatar = nil
	}
	for _, n := range r.environment {
		r.scene.Remove(n)
		n.Dispose()
	}
	r.environment = nil
	r.avatarKind = AvatarNone
	r.mixer.Stop()
}

// UpdateAvatarState maps a metrics sample onto the avatar's appearance:
// emissive color by stress band, intensity by stress level. Every call
// writes every avatar mesh.
func (r *Renderer) UpdateAvatarState(sample internal.MetricsSample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return
	}
	r.hasSample = true
	r.stress = sample.StressLevel
	r.band = internal.ClassifyStress(sample.StressLevel)
	r.emissive = BandColor(r.band)
	r.intensity = internal.EmissiveIntensity(sample.StressLevel)
	r.applyEmissiveLocked()
}

func (r *Renderer) applyEmissiveLocked() {
	if r.avatar == nil {
		return
	}
	r.avatar.Walk(func(m *Mesh) {
		if m.Material != nil {
			m.Material.Emissive = r.emissive
			m.Material.EmissiveIntensity = r.intensity
		}
	})
}

// Resize re-derives the camera aspect and resizes the surface.
// Non-positive sizes are ignored.
func (r *Renderer) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	size := Size{Width: width, Height: height}
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.size = size
	r.camera.Aspect = float64(width) / float64(height)
	r.mu.Unlock()
	r.surface.Resize(size)
}

// AttachResize listens for size changes until sizes closes or the renderer
// is disposed. Attaching again replaces the previous listener.
func (r *Renderer) AttachResize(sizes <-chan Size) {
	stop := make(chan struct{})
	done := make(chan struct{})
	detach := func() {
		close(stop)
		<-done
	}

	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	previous := r.detachResize
	r.detachResize = detach
	r.mu.Unlock()
	if previous != nil {
		previous()
	}

	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case s, ok := <-sizes:
				if !ok {
					return
				}
				r.Resize(s.Width, s.Height)
			}
		}
	}()
}

// Dispose stops the loop, detaches the resize listener, releases every
// geometry and material and the surface. Safe to call more than once.
func (r *Renderer) Dispose() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.disposed = true
	cancel, loopDone := r.cancel, r.loopDone
	detach := r.detachResize
	r.detachResize = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-loopDone
	}
	if detach != nil {
		detach()
	}

	r.mu.Lock()
	r.clearLocked()
	r.phase = PhaseIdle
	r.mu.Unlock()

	r.surface.Release()
}

// MeshCount returns the number of meshes currently in the scene
func (r *Renderer) MeshCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scene.MeshCount()
}
