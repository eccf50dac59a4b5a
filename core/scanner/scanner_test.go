package scanner

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"extgov/core/registry"
	"extgov/core/store"
)

type memRegistrar struct {
	byName map[string]store.Extension
	seq    int
}

func newMemRegistrar() *memRegistrar {
	return &memRegistrar{byName: map[string]store.Extension{}}
}

func (m *memRegistrar) Register(_ context.Context, ext store.Extension) (store.Extension, bool, error) {
	if err := registry.Normalize(&ext); err != nil {
		return store.Extension{}, false, err
	}
	ext.Fingerprint = registry.Fingerprint(ext.Surface)
	prev, ok := m.byName[ext.Name]
	if ok {
		ext.ID = prev.ID
		if ext.Status == "" {
			ext.Status = prev.Status
		}
	} else {
		m.seq++
		ext.ID = string(rune('a' + m.seq))
		if ext.Status == "" {
			ext.Status = store.StatusPendingReview
		}
	}
	m.byName[ext.Name] = ext
	return ext, !ok, nil
}

func (m *memRegistrar) GetByName(_ context.Context, name string) (*store.Extension, error) {
	ext, ok := m.byName[name]
	if !ok {
		return nil, nil
	}
	return &ext, nil
}

var patterns = []string{"**/extension.yaml", "**/extension.yml"}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"blog/extension.yaml": {Data: []byte(`
name: blog
author: acme
version: 1.0.0
kind: module
files: ["src/**/*.ts"]
routes: [/blog, /blog/:slug]
dependencies:
  react: ^18.0.0
`)},
		"blog/src/index.ts":        {Data: []byte("export default {}")},
		"blog/src/admin/editor.ts": {Data: []byte("fetch('https://cdn.example.com')")},
		"blog/README.md":           {Data: []byte("# blog")},

		"widgets/chart/extension.yml": {Data: []byte(`
name: chart
version: 0.3.1
kind: component
components: [Chart]
stylesheets: [chart.css]
`)},
		"broken/extension.yaml": {Data: []byte("name: [unterminated")},
		"noname/extension.yaml": {Data: []byte("version: 1.0.0\nkind: module\n")},
	}
}

func TestScanRegistersAndReportsErrors(t *testing.T) {
	reg := newMemRegistrar()
	s := NewFS(testFS(), patterns, reg, nil)

	res, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Scanned)
	assert.Equal(t, 2, res.Registered)
	assert.Len(t, res.Errors, 2)
	assert.Len(t, res.IDs, 2)

	blog := reg.byName["blog"]
	assert.Equal(t, []string{"blog/src/admin/editor.ts", "blog/src/index.ts"}, blog.Files)
	assert.Equal(t, "^18.0.0", blog.Dependencies["react"])
	assert.Equal(t, store.KindComponent, reg.byName["chart"].Kind)
}

func TestRescanIsUnchangedUntilSurfaceMoves(t *testing.T) {
	fsys := testFS()
	reg := newMemRegistrar()
	s := NewFS(fsys, patterns, reg, nil)
	ctx := context.Background()

	_, err := s.Scan(ctx)
	require.NoError(t, err)

	res, err := s.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Registered)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 2, res.Unchanged)

	fsys["widgets/chart/extension.yml"] = &fstest.MapFile{Data: []byte(`
name: chart
version: 0.4.0
kind: component
components: [Chart, Legend]
`)}
	res, err = s.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Unchanged)
	assert.Equal(t, []string{"Chart", "Legend"}, reg.byName["chart"].Components)
}

func TestScanHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFS(testFS(), patterns, newMemRegistrar(), nil).Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseManifestRequiresName(t *testing.T) {
	_, err := ParseManifest([]byte("version: 1.0.0"))
	assert.Error(t, err)

	m, err := ParseManifest([]byte("name: x\nglobal_state: [cart]\napi_endpoints: [api.example.com/v1]"))
	require.NoError(t, err)
	ext := m.Extension(nil)
	assert.Equal(t, []string{"cart"}, ext.GlobalState)
	assert.Equal(t, []string{"api.example.com/v1"}, ext.APIEndpoints)
}

func TestManifestCannotSelfActivate(t *testing.T) {
	fsys := fstest.MapFS{
		"clock/extension.yaml": {Data: []byte("name: clock\nversion: 1.0.0\nkind: component\nstatus: active\n")},
	}
	reg := newMemRegistrar()
	s := NewFS(fsys, patterns, reg, nil)
	ctx := context.Background()

	res, err := s.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Registered)
	assert.Equal(t, store.StatusPendingReview, reg.byName["clock"].Status)

	res, err = s.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unchanged)
	assert.Equal(t, store.StatusPendingReview, reg.byName["clock"].Status)
}
