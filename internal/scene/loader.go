package scene

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/iksnae/hdt-console/internal"
	"github.com/qmuntal/gltf"
)

// Fetcher retrieves asset bytes by slash-separated relative path
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// DirFetcher reads assets from a local directory
type DirFetcher struct {
	Root string
}

// Fetch reads root/path
func (f DirFetcher) Fetch(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full := filepath.Join(f.Root, filepath.FromSlash(path.Clean("/" + p)))
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, &internal.AssetError{Path: p, Op: "fetch", Err: err}
	}
	return data, nil
}

// HTTPFetcher downloads assets relative to a base URL
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPFetcher creates a fetcher for baseURL
func NewHTTPFetcher(baseURL string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{BaseURL: strings.TrimRight(baseURL, "/"), Client: &http.Client{Timeout: timeout}}
}

// Fetch downloads BaseURL/path
func (f *HTTPFetcher) Fetch(ctx context.Context, p string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+"/"+strings.TrimLeft(p, "/"), nil)
	if err != nil {
		return nil, &internal.AssetError{Path: p, Op: "fetch", Err: err}
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &internal.AssetError{Path: p, Op: "fetch", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &internal.AssetError{Path: p, Op: "fetch", Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &internal.AssetError{Path: p, Op: "fetch", Err: err}
	}
	return data, nil
}

// CachingFetcher serves assets from an on-disk cache, falling back to Next
// on a miss. Only successful fetches are stored.
type CachingFetcher struct {
	Next  Fetcher
	Cache *internal.CacheManager
}

// Fetch returns the cached copy of p or fetches and stores it
func (f *CachingFetcher) Fetch(ctx context.Context, p string) ([]byte, error) {
	if data, ok := f.Cache.Get(p); ok {
		internal.LogDebug("Asset %s served from cache", p)
		return data, nil
	}
	data, err := f.Next.Fetch(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := f.Cache.Put(p, data); err != nil {
		internal.LogWarn("Failed to cache asset %s: %v", p, err)
	}
	return data, nil
}

// Clip is one animation of a loaded model
type Clip struct {
	Name     string
	Duration time.Duration
}

// Model is a decoded asset ready to be placed in the scene
type Model struct {
	Root   *Node
	Bounds Box
	Clips  []Clip
}

// AssetLoader turns an asset path into a Model
type AssetLoader interface {
	Load(ctx context.Context, path string) (*Model, error)
}

// GLTFLoader loads glTF 2.0 assets (.gltf or binary .glb) through a Fetcher
type GLTFLoader struct {
	Fetcher Fetcher
}

// NewGLTFLoader creates a loader reading through f
func NewGLTFLoader(f Fetcher) *GLTFLoader {
	return &GLTFLoader{Fetcher: f}
}

// Load fetches and decodes path into a Model with one mesh per glTF mesh
func (l *GLTFLoader) Load(ctx context.Context, p string) (*Model, error) {
	data, err := l.Fetcher.Fetch(ctx, p)
	if err != nil {
		return nil, err
	}

	doc := new(gltf.Document)
	dec := gltf.NewDecoderFS(bytes.NewReader(data), &fetchFS{ctx: ctx, fetcher: l.Fetcher, dir: path.Dir(p)})
	if err := dec.Decode(doc); err != nil {
		return nil, &internal.AssetError{Path: p, Op: "decode", Err: err}
	}
	if len(doc.Meshes) == 0 {
		return nil, &internal.AssetError{Path: p, Op: "decode", Err: errors.New("no meshes")}
	}

	model := &Model{Root: NewNode(path.Base(p))}
	for i, gm := range doc.Meshes {
		name := gm.Name
		if name == "" {
			name = fmt.Sprintf("mesh-%d", i)
		}
		geom := &Geometry{Kind: GeometryImported}
		var mat *Material
		for _, prim := range gm.Primitives {
			if idx, ok := prim.Attributes[gltf.POSITION]; ok && int(idx) < len(doc.Accessors) {
				acc := doc.Accessors[idx]
				if len(acc.Min) >= 3 && len(acc.Max) >= 3 {
					geom.Bounds.Extend(Vec3{float64(acc.Min[0]), float64(acc.Min[1]), float64(acc.Min[2])})
					geom.Bounds.Extend(Vec3{float64(acc.Max[0]), float64(acc.Max[1]), float64(acc.Max[2])})
				}
			}
			if mat == nil && prim.Material != nil {
				mat = materialFromDoc(doc, int(*prim.Material))
			}
		}
		if mat == nil {
			mat = newMaterial(ColorDefault)
		}
		if !geom.Bounds.Empty() {
			model.Bounds.Extend(geom.Bounds.Min)
			model.Bounds.Extend(geom.Bounds.Max)
		}
		model.Root.Add(newMesh(name, geom, mat, Vec3{}))
	}

	for i, anim := range doc.Animations {
		name := anim.Name
		if name == "" {
			name = fmt.Sprintf("clip-%d", i)
		}
		var seconds float64
		for _, s := range anim.Samplers {
			if int(s.Input) >= len(doc.Accessors) {
				continue
			}
			if in := doc.Accessors[s.Input]; len(in.Max) > 0 && float64(in.Max[0]) > seconds {
				seconds = float64(in.Max[0])
			}
		}
		model.Clips = append(model.Clips, Clip{Name: name, Duration: time.Duration(seconds * float64(time.Second))})
	}

	internal.LogDebug("Loaded %s: %d meshes, %d clips", p, len(doc.Meshes), len(model.Clips))
	return model, nil
}

func materialFromDoc(doc *gltf.Document, idx int) *Material {
	if idx < 0 || idx >= len(doc.Materials) {
		return nil
	}
	gm := doc.Materials[idx]
	mat := newMaterial(ColorDefault)
	if pbr := gm.PBRMetallicRoughness; pbr != nil && pbr.BaseColorFactor != nil {
		f := pbr.BaseColorFactor
		mat.Color = ColorFromRGB(float64(f[0]), float64(f[1]), float64(f[2]))
		if f[3] < 1 {
			mat.Transparent = true
			mat.Opacity = float64(f[3])
		}
	}
	return mat
}

// Normalize scales the model to AvatarHeight, centers it on x/z and stands
// it on y=0
func (m *Model) Normalize(height float64) {
	if m.Bounds.Empty() {
		return
	}
	size := m.Bounds.Size()
	if size.Y <= 0 {
		return
	}
	scale := height / size.Y
	center := m.Bounds.Center()
	m.Root.Scale = Vec3{scale, scale, scale}
	m.Root.Position = Vec3{-center.X * scale, -m.Bounds.Min.Y * scale, -center.Z * scale}
}

// fetchFS exposes a Fetcher as an fs.FS so the glTF decoder can resolve
// external buffers next to the asset
type fetchFS struct {
	ctx     context.Context
	fetcher Fetcher
	dir     string
}

func (f *fetchFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	data, err := f.fetcher.Fetch(f.ctx, path.Join(f.dir, name))
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &memFile{Reader: bytes.NewReader(data), name: path.Base(name), size: int64(len(data))}, nil
}

type memFile struct {
	*bytes.Reader
	name string
	size int64
}

func (f *memFile) Stat() (fs.FileInfo, error) { return f, nil }
func (f *memFile) Close() error               { return nil }
func (f *memFile) Name() string               { return f.name }
func (f *memFile) Size() int64                { return f.size }
func (f *memFile) Mode() fs.FileMode          { return 0444 }
func (f *memFile) ModTime() time.Time         { return time.Time{} }
func (f *memFile) IsDir() bool                { return false }
func (f *memFile) Sys() any                   { return nil }
