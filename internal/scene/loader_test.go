package scene

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iksnae/hdt-console/internal"
	"github.com/iksnae/hdt-console/testutil"
)

func TestGLTFLoader_Load(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	testutil.WriteAsset(t, dir, "models/avatars/x.glb", testutil.GLTFFixture("Body", 3.6, 2.5, 1))

	model, err := NewGLTFLoader(DirFetcher{Root: dir}).Load(context.Background(), "models/avatars/x.glb")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if model.Root.MeshCount() != 1 || model.Root.Meshes[0].Name != "Body" {
		t.Errorf("meshes = %+v", model.Root.Meshes)
	}
	if len(model.Clips) != 2 || model.Clips[0].Duration != 2500*time.Millisecond {
		t.Errorf("Clips = %+v", model.Clips)
	}
	if size := model.Bounds.Size(); math.Abs(size.Y-3.6) > 1e-6 {
		t.Errorf("bounds height = %v, want 3.6", size.Y)
	}

	model.Normalize(AvatarHeight)
	if math.Abs(model.Root.Scale.X-0.5) > 1e-6 {
		t.Errorf("scale = %v, want 0.5", model.Root.Scale)
	}
}

func TestGLTFLoader_Errors(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	testutil.WriteAsset(t, dir, "broken.glb", []byte("not gltf"))
	testutil.WriteAsset(t, dir, "empty.gltf", []byte(`{"asset":{"version":"2.0"}}`))
	loader := NewGLTFLoader(DirFetcher{Root: dir})

	tests := []struct {
		path string
		op   string
	}{
		{"missing.glb", "fetch"},
		{"broken.glb", "decode"},
		{"empty.gltf", "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := loader.Load(context.Background(), tt.path)
			var assetErr *internal.AssetError
			if !errors.As(err, &assetErr) {
				t.Fatalf("error = %v, want *AssetError", err)
			}
			if assetErr.Op != tt.op {
				t.Errorf("Op = %q, want %q", assetErr.Op, tt.op)
			}
		})
	}
}

func TestHTTPFetcher(t *testing.T) {
	fixture := testutil.GLTFFixture("Desk", 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/environment/desk.glb" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(fixture)
	}))
	defer srv.Close()

	loader := NewGLTFLoader(NewHTTPFetcher(srv.URL+"/", time.Second))
	if _, err := loader.Load(context.Background(), EnvironmentPath("desk")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := loader.Load(context.Background(), EnvironmentPath("chair")); err == nil {
		t.Error("Load() of a 404 asset should fail")
	}
}

type countingFetcher struct {
	calls int
	fail  bool
}

func (f *countingFetcher) Fetch(ctx context.Context, p string) ([]byte, error) {
	f.calls++
	if f.fail {
		return nil, &internal.AssetError{Path: p, Op: "fetch", Err: errors.New("HTTP 404")}
	}
	return []byte("asset:" + p), nil
}

func TestCachingFetcher(t *testing.T) {
	next := &countingFetcher{}
	f := &CachingFetcher{Next: next, Cache: internal.NewCacheManager(testutil.CreateTempDir(t), time.Hour)}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		data, err := f.Fetch(ctx, "models/environment/desk.glb")
		if err != nil || string(data) != "asset:models/environment/desk.glb" {
			t.Fatalf("Fetch() = %q, %v", data, err)
		}
	}
	if next.calls != 1 {
		t.Errorf("underlying fetches = %d, want 1", next.calls)
	}

	next.fail = true
	if _, err := f.Fetch(ctx, "models/environment/chair.glb"); err == nil {
		t.Fatal("Fetch() should pass through the miss error")
	}
	if _, err := f.Fetch(ctx, "models/environment/chair.glb"); err == nil {
		t.Error("a failed fetch must not be cached")
	}
	if next.calls != 3 {
		t.Errorf("underlying fetches = %d, want 3", next.calls)
	}
}

func TestDirFetcher_StaysInRoot(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	testutil.WriteAsset(t, dir, "a.glb", []byte("x"))

	if _, err := (DirFetcher{Root: dir}).Fetch(context.Background(), "../../a.glb"); err != nil {
		t.Errorf("Fetch() of a cleaned path error = %v", err)
	}
}

func TestMixer(t *testing.T) {
	var m Mixer
	m.Update(time.Second)
	if m.Playing() != "" || m.Time() != 0 {
		t.Error("idle mixer should not advance")
	}

	m.Play(Clip{Name: "Idle", Duration: 2 * time.Second})
	m.Update(1500 * time.Millisecond)
	m.Update(1 * time.Second)
	if m.Time() != 500*time.Millisecond {
		t.Errorf("Time() = %v, want looped 500ms", m.Time())
	}

	m.Stop()
	if m.Playing() != "" {
		t.Error("Stop() should clear the clip")
	}
}

func TestColor(t *testing.T) {
	if got := ColorAlert.Hex(); got != "#ef4444" {
		t.Errorf("Hex() = %q", got)
	}
	if got := ColorFromRGB(1, 0.5, 0); got != 0xff8000 {
		t.Errorf("ColorFromRGB() = %s", got.Hex())
	}
	if RoleColor("pilot") != ColorDefault {
		t.Error("unknown role should use the default color")
	}
}
