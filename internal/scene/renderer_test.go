package scene

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/iksnae/hdt-console/internal"
	"github.com/iksnae/hdt-console/testutil"
)

type recordingSurface struct {
	mu       sync.Mutex
	frames   []Frame
	sizes    []Size
	released int
}

func (s *recordingSurface) Resize(size Size) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sizes = append(s.sizes, size)
}

func (s *recordingSurface) Present(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
}

func (s *recordingSurface) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
}

func (s *recordingSurface) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *recordingSurface) lastSize() Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sizes) == 0 {
		return Size{}
	}
	return s.sizes[len(s.sizes)-1]
}

func TestLoadRole_FallbackWithoutLoaders(t *testing.T) {
	r := NewRenderer(nil)
	report := r.LoadRole(context.Background(), internal.RoleOfficeWorker)

	if report.Avatar != AvatarFallback {
		t.Errorf("Avatar = %v, want procedural", report.Avatar)
	}
	if report.AvatarErr != nil {
		t.Errorf("AvatarErr = %v, want nil without a loader", report.AvatarErr)
	}
	if !report.UsedPrimitives || len(report.Environment) != 2 {
		t.Errorf("Environment = %v, want the two primitives", report.Environment)
	}

	f := r.Snapshot()
	if f.Phase != PhaseReady {
		t.Errorf("Phase = %v, want ready", f.Phase)
	}
	if f.AvatarMeshes != 7 {
		t.Errorf("AvatarMeshes = %d, want 7", f.AvatarMeshes)
	}
	if f.MeshCount != 9 {
		t.Errorf("MeshCount = %d, want 9", f.MeshCount)
	}

	r.avatar.Walk(func(m *Mesh) {
		if m.Name == "glow" {
			if !m.Material.Transparent || m.CastShadow {
				t.Errorf("glow mesh = %+v", m)
			}
			return
		}
		if m.Material.Color != ColorOfficeWorker {
			t.Errorf("%s color = %s, want %s", m.Name, m.Material.Color.Hex(), ColorOfficeWorker.Hex())
		}
		if !m.CastShadow {
			t.Errorf("%s should cast shadows", m.Name)
		}
	})
}

func TestLoadRole_Detailed(t *testing.T) {
	dir := testutil.CreateAssetTree(t, []internal.Role{internal.RoleSoftwareEngineer})
	loader := NewGLTFLoader(DirFetcher{Root: dir})
	r := NewRenderer(nil, WithAvatarLoader(loader))

	report := r.LoadRole(context.Background(), internal.RoleSoftwareEngineer)
	if report.Avatar != AvatarDetailed {
		t.Fatalf("Avatar = %v, err = %v", report.Avatar, report.AvatarErr)
	}

	f := r.Snapshot()
	if f.Clip != "clipA" {
		t.Errorf("Clip = %q, want first clip playing", f.Clip)
	}
	if math.Abs(r.avatar.Scale.Y-0.5) > 1e-9 {
		t.Errorf("scale = %v, want 0.5 to fit 1.8 units", r.avatar.Scale.Y)
	}
	if r.avatar.Position.Y != 0 {
		t.Errorf("position y = %v, want standing on 0", r.avatar.Position.Y)
	}
	r.avatar.Walk(func(m *Mesh) {
		if !m.CastShadow {
			t.Errorf("%s should cast shadows", m.Name)
		}
	})
}

func TestLoadRole_MissingAssetFallsBack(t *testing.T) {
	dir := testutil.CreateAssetTree(t, nil)
	r := NewRenderer(nil, WithAvatarLoader(NewGLTFLoader(DirFetcher{Root: dir})))

	report := r.LoadRole(context.Background(), internal.RoleFactoryWorker)
	if report.Avatar != AvatarFallback {
		t.Errorf("Avatar = %v, want procedural", report.Avatar)
	}
	var assetErr *internal.AssetError
	if !errors.As(report.AvatarErr, &assetErr) {
		t.Errorf("AvatarErr = %v, want *AssetError", report.AvatarErr)
	}
	if r.Snapshot().Phase != PhaseReady {
		t.Error("renderer should reach ready after a fallback")
	}
}

func TestLoadRole_EnvironmentPiecesIndependent(t *testing.T) {
	dir := testutil.CreateAssetTree(t, nil, "chair", "desk")
	loader := NewGLTFLoader(DirFetcher{Root: dir})
	r := NewRenderer(nil, WithEnvironmentLoader(loader))

	report := r.LoadRole(context.Background(), internal.RoleOfficeWorker)
	if report.UsedPrimitives {
		t.Error("primitives should not be used with an environment loader")
	}
	if len(report.Environment) != 2 || report.Environment[0] != "chair" || report.Environment[1] != "desk" {
		t.Errorf("Environment = %v, want [chair desk]", report.Environment)
	}
	if _, ok := report.EnvironmentErrs["monitor"]; !ok {
		t.Errorf("EnvironmentErrs = %v, want monitor failure", report.EnvironmentErrs)
	}
}

// inflightLoader checks the scene while a load is in flight
type inflightLoader struct {
	r        *Renderer
	previous *Node
	t        *testing.T
	calls    int
}

func (p *inflightLoader) Load(ctx context.Context, path string) (*Model, error) {
	p.calls++
	if p.r.MeshCount() != 0 {
		p.t.Errorf("scene holds %d meshes while loading %s, want 0", p.r.MeshCount(), path)
	}
	if p.previous != nil {
		p.previous.Walk(func(m *Mesh) {
			if !m.Geometry.Disposed() || !m.Material.Disposed() {
				p.t.Errorf("previous mesh %s not disposed before next load", m.Name)
			}
		})
	}
	return nil, errors.New("offline")
}

func TestLoadRole_DisposesPreviousAvatarFirst(t *testing.T) {
	loader := &inflightLoader{t: t}
	r := NewRenderer(nil, WithAvatarLoader(loader))
	loader.r = r

	r.LoadRole(context.Background(), internal.RoleSoftwareEngineer)
	loader.previous = r.avatar
	r.LoadRole(context.Background(), internal.RoleFactoryWorker)

	if loader.calls != 2 {
		t.Fatalf("loader calls = %d, want 2", loader.calls)
	}
	if r.avatar == loader.previous {
		t.Error("avatar was not replaced")
	}
	if got := r.avatar.Meshes[0].Material.Color; got != ColorFactoryWorker {
		t.Errorf("avatar color = %s, want factory worker", got.Hex())
	}
}

func TestLoadRole_ConcurrentReloadsKeepOneAvatar(t *testing.T) {
	r := NewRenderer(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	maxMeshes := 0
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				if n := r.MeshCount(); n > maxMeshes {
					maxMeshes = n
				}
			}
		}
	}()

	var loads sync.WaitGroup
	for i := 0; i < 10; i++ {
		loads.Add(1)
		go func(role internal.Role) {
			defer loads.Done()
			r.LoadRole(ctx, role)
		}(internal.Roles[i%len(internal.Roles)])
	}
	loads.Wait()
	close(stop)
	wg.Wait()

	if maxMeshes > 9 {
		t.Errorf("scene held %d meshes at once, want at most one avatar and environment (9)", maxMeshes)
	}
	if f := r.Snapshot(); f.AvatarMeshes != 7 || f.MeshCount != 9 {
		t.Errorf("final frame = %+v", f)
	}
}

func TestUpdateAvatarState(t *testing.T) {
	tests := []struct {
		stress    float64
		band      internal.StressBand
		color     Color
		intensity float64
	}{
		{10, internal.BandCalm, ColorCalm, 0.43},
		{30, internal.BandWarning, ColorWarning, 0.49},
		{75, internal.BandAlert, ColorAlert, 0.625},
		{150, internal.BandAlert, ColorAlert, 0.7},
	}
	r := NewRenderer(nil)
	r.LoadRole(context.Background(), internal.RoleSoftwareEngineer)

	for _, tt := range tests {
		r.UpdateAvatarState(testutil.SampleMetrics(tt.stress))
		f := r.Snapshot()
		if f.Band != tt.band || f.Emissive != tt.color {
			t.Errorf("stress %v: band %v color %s, want %v %s", tt.stress, f.Band, f.Emissive.Hex(), tt.band, tt.color.Hex())
		}
		if math.Abs(f.EmissiveIntensity-tt.intensity) > 1e-9 {
			t.Errorf("stress %v: intensity = %v, want %v", tt.stress, f.EmissiveIntensity, tt.intensity)
		}
		r.avatar.Walk(func(m *Mesh) {
			if m.Material.Emissive != tt.color || math.Abs(m.Material.EmissiveIntensity-tt.intensity) > 1e-9 {
				t.Errorf("stress %v: mesh %s emissive %s/%v", tt.stress, m.Name, m.Material.Emissive.Hex(), m.Material.EmissiveIntensity)
			}
		})
	}
}

func TestUpdateAvatarState_AppliedToNextAvatar(t *testing.T) {
	r := NewRenderer(nil)
	r.UpdateAvatarState(testutil.SampleMetrics(75))
	r.LoadRole(context.Background(), internal.RoleOfficeWorker)

	r.avatar.Walk(func(m *Mesh) {
		if m.Material.Emissive != ColorAlert {
			t.Errorf("mesh %s emissive = %s, want alert", m.Name, m.Material.Emissive.Hex())
		}
	})
}

func TestResize(t *testing.T) {
	surface := &recordingSurface{}
	r := NewRenderer(surface)

	r.Resize(160, 90)
	f := r.Snapshot()
	if math.Abs(f.Camera.Aspect-160.0/90.0) > 1e-9 {
		t.Errorf("Aspect = %v", f.Camera.Aspect)
	}
	if surface.lastSize() != (Size{160, 90}) {
		t.Errorf("surface size = %v", surface.lastSize())
	}

	r.Resize(0, 40)
	if r.Snapshot().Size != (Size{160, 90}) {
		t.Error("non-positive size should be ignored")
	}
}

func TestAttachResize(t *testing.T) {
	surface := &recordingSurface{}
	r := NewRenderer(surface)
	sizes := make(chan Size)
	r.AttachResize(sizes)

	sizes <- Size{80, 40}
	testutil.Eventually(t, time.Second, func() bool {
		return surface.lastSize() == Size{80, 40}
	}, "resize listener applied the size")

	r.Dispose()
	select {
	case sizes <- Size{10, 10}:
		t.Error("listener still attached after Dispose")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRenderLoop(t *testing.T) {
	surface := &recordingSurface{}
	r := NewRenderer(surface, WithFrameRate(200))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r.Start(ctx)
	r.Start(ctx)
	testutil.Eventually(t, 2*time.Second, func() bool { return surface.frameCount() >= 3 }, "frames presented")

	r.LoadRole(ctx, internal.RoleSoftwareEngineer)
	before := surface.frameCount()
	testutil.Eventually(t, 2*time.Second, func() bool { return surface.frameCount() > before+2 }, "frames keep coming after a load")

	r.Dispose()
	after := surface.frameCount()
	time.Sleep(30 * time.Millisecond)
	if surface.frameCount() != after {
		t.Error("frames presented after Dispose")
	}
}

func TestDispose(t *testing.T) {
	surface := &recordingSurface{}
	r := NewRenderer(surface)
	r.Start(context.Background())
	r.LoadRole(context.Background(), internal.RoleFactoryWorker)
	avatar := r.avatar
	env := r.environment

	r.Dispose()
	r.Dispose()

	if surface.released != 1 {
		t.Errorf("Release called %d times, want 1", surface.released)
	}
	if r.MeshCount() != 0 {
		t.Errorf("MeshCount = %d after Dispose", r.MeshCount())
	}
	for _, n := range append([]*Node{avatar}, env...) {
		n.Walk(func(m *Mesh) {
			if !m.Geometry.Disposed() || !m.Material.Disposed() {
				t.Errorf("mesh %s not disposed", m.Name)
			}
		})
	}
	if report := r.LoadRole(context.Background(), internal.RoleOfficeWorker); !report.Skipped {
		t.Error("LoadRole after Dispose should be skipped")
	}
}

func TestFallbackIdleMotion(t *testing.T) {
	r := NewRenderer(nil)
	r.LoadRole(context.Background(), internal.RoleOfficeWorker)

	f := r.advance(750 * time.Millisecond)
	wantBob, wantSway := idleMotion(750 * time.Millisecond)
	if f.Bob != wantBob || f.Sway != wantSway {
		t.Errorf("bob/sway = %v/%v, want %v/%v", f.Bob, f.Sway, wantBob, wantSway)
	}
	if math.Abs(f.Bob) > 0.05 {
		t.Errorf("bob = %v, out of range", f.Bob)
	}
}
