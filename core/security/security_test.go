package security

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"extgov/core/store"
)

func TestDefaultPatternsLoad(t *testing.T) {
	ps, err := DefaultPatterns()
	require.NoError(t, err)
	names := make([]string, 0, len(ps.Capabilities))
	for _, c := range ps.Capabilities {
		names = append(names, c.Name)
		assert.NotEmpty(t, c.Patterns, c.Name)
	}
	assert.Equal(t, []string{"dynamic-import", "env", "eval", "exec", "fs:write", "network", "storage", "unsafe"}, names)
}

func TestParsePatternsRejectsBadRegex(t *testing.T) {
	_, err := ParsePatterns([]byte("capabilities:\n  bad:\n    weight: 1\n    patterns: ['(']\n"))
	require.Error(t, err)
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "api.example.com/v1/items", NormalizeEndpoint("https://API.Example.com:443/v1/items/?q=1"))
	assert.Equal(t, "cdn.example.com", NormalizeEndpoint("cdn.example.com/"))
}

func TestEgressPolicy(t *testing.T) {
	p, err := NewEgressPolicy([]string{"api.example.com/*", "maps=tiles.example.org/:z/*"})
	require.NoError(t, err)

	ok, err := p.Allowed("any", "https://api.example.com/v1/items")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Allowed("maps", "https://tiles.example.org/3/1/2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Allowed("other", "https://tiles.example.org/3/1/2")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.Allowed("any", "/api/local")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEgressPolicyEmptyDeniesExternal(t *testing.T) {
	p, err := NewEgressPolicy(nil)
	require.NoError(t, err)
	ok, err := p.Allowed("any", "https://evil.example.net/collect")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEgressPolicyDeniesInternalTargetsEvenWhenListed(t *testing.T) {
	p, err := NewEgressPolicy([]string{"169.254.169.254/*", "10.0.0.5/*", "localhost/*"})
	require.NoError(t, err)
	for _, ep := range []string{
		"http://169.254.169.254/latest/meta-data",
		"http://10.0.0.5/admin",
		"http://localhost:3000/debug",
	} {
		ok, err := p.Allowed("any", ep)
		require.NoError(t, err)
		assert.False(t, ok, ep)
	}
}

func TestInternalTarget(t *testing.T) {
	cases := map[string]bool{
		"http://127.0.0.1:8080/x":      true,
		"https://[::1]/x":              true,
		"http://192.168.1.20/router":   true,
		"http://100.64.3.3/":           true,
		"http://[fd00:ec2::254]/creds": true,
		"http://224.0.0.1/":            true,
		"https://8.8.8.8/dns":          false,
		"https://api.example.com/v1":   false,
		"/api/local":                   false,
	}
	for ep, want := range cases {
		assert.Equal(t, want, InternalTarget(ep), ep)
	}
}

func TestEgressPolicyRejectsInnerWildcard(t *testing.T) {
	_, err := NewEgressPolicy([]string{"*.example.com/*"})
	require.Error(t, err)
}

func TestAnalyzeScoresCapabilitiesAndEgress(t *testing.T) {
	fsys := fstest.MapFS{
		"ext/a/index.js": {Data: []byte("const x = eval(input)\nfetch(\"https://tracker.example.net/p\")\n")},
		"ext/a/view.jsx": {Data: []byte("<div dangerouslySetInnerHTML={html} />\nlocalStorage.setItem('k', v)\n")},
		"ext/a/huge.js":  {Data: make([]byte, 2048)},
	}
	ps, err := DefaultPatterns()
	require.NoError(t, err)
	egress, err := NewEgressPolicy([]string{"api.example.com/*"})
	require.NoError(t, err)
	a := NewAnalyzer(fsys, ps, egress, 1024, nil)

	ext := store.Extension{Name: "a"}
	ext.Files = []string{"ext/a/index.js", "ext/a/view.jsx", "ext/a/huge.js", "ext/a/missing.js"}
	ext.APIEndpoints = []string{"https://api.example.com/v1", "https://tracker.example.net/p", "/api/own"}

	rep, err := a.Analyze(context.Background(), ext)
	require.NoError(t, err)
	assert.Equal(t, []string{"eval", "network", "storage", "unsafe"}, rep.Capabilities)
	assert.Equal(t, 25+15+5+25, rep.CapabilityWeight)
	assert.Equal(t, []string{"https://tracker.example.net/p"}, rep.DeniedEndpoints)
	assert.Equal(t, 100-70-DeniedEndpointPenalty, rep.Score)
	assert.ElementsMatch(t, []string{"ext/a/huge.js", "ext/a/missing.js"}, rep.SkippedFiles)
	assert.Len(t, rep.Findings, 4)
}

func TestAnalyzeScoreFloorsAtZero(t *testing.T) {
	ps, err := DefaultPatterns()
	require.NoError(t, err)
	fsys := fstest.MapFS{"x.js": {Data: []byte(
		"eval(a)\nrequire('child_process')\nel.innerHTML = s\nnew WebSocket(u)\nfs.writeFileSync(p)\n",
	)}}
	egress, err := NewEgressPolicy(nil)
	require.NoError(t, err)
	ext := store.Extension{Name: "x"}
	ext.Files = []string{"x.js"}
	ext.APIEndpoints = []string{"https://a.example", "https://b.example"}

	rep, err := NewAnalyzer(fsys, ps, egress, 0, nil).Analyze(context.Background(), ext)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Score)
}

func TestAnalyzeCleanExtension(t *testing.T) {
	ps, err := DefaultPatterns()
	require.NoError(t, err)
	fsys := fstest.MapFS{"c.js": {Data: []byte("export const add = (a, b) => a + b\n")}}
	ext := store.Extension{Name: "c"}
	ext.Files = []string{"c.js"}
	rep, err := NewAnalyzer(fsys, ps, nil, 0, nil).Analyze(context.Background(), ext)
	require.NoError(t, err)
	assert.Equal(t, 100, rep.Score)
	assert.Empty(t, rep.Capabilities)
}

func TestAnalyzeHonorsCancellation(t *testing.T) {
	ps, err := DefaultPatterns()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ext := store.Extension{Name: "c"}
	ext.Files = []string{"c.js"}
	_, err = NewAnalyzer(fstest.MapFS{}, ps, nil, 0, nil).Analyze(ctx, ext)
	require.ErrorIs(t, err, context.Canceled)
}
