package serve_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Emyrk/profgraph/graph"
	"github.com/Emyrk/profgraph/profile"
	"github.com/Emyrk/profgraph/render"
	"github.com/Emyrk/profgraph/serve"
)

const stacks = `main;work;leaf 1000
main;work 500
main;idle 1
`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := serve.DefaultConfig()
	cfg.Defaults.Format = profile.FormatCollapsed
	cfg.Defaults.Output = render.OutputDot
	cfg.MaxBodyBytes = 1024

	srv, err := serve.New(cfg, zerolog.New(io.Discard))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, query, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/render?"+query, "text/plain", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func metrics(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestRender(t *testing.T) {
	t.Parallel()

	ts := newServer(t)

	status, body := post(t, ts, "", stacks)
	require.Equal(t, http.StatusOK, status, body)
	require.True(t, strings.HasPrefix(body, "digraph {"), body)
	require.Contains(t, body, `label="main\n100.00%`)
	require.NotContains(t, body, "idle", "below the default node threshold")

	status, body = post(t, ts, "output=text&node_thres=0&top=2", stacks)
	require.Equal(t, http.StatusOK, status, body)
	require.Len(t, strings.Split(strings.TrimSpace(body), "\n"), 3)

	status, body = post(t, ts, "root=work&node_thres=0", stacks)
	require.Equal(t, http.StatusOK, status, body)
	require.NotContains(t, body, `label="main`)
	require.Contains(t, body, `label="leaf`)

	m := metrics(t, ts)
	require.Contains(t, m, `profgraph_render_requests_total{format="collapsed",status="ok"} 3`)
	require.Contains(t, m, "profgraph_graph_functions 2")
	require.Contains(t, m, "profgraph_graph_cycles 0")
	require.Contains(t, m, "profgraph_render_duration_seconds_count")
}

func TestRenderErrors(t *testing.T) {
	t.Parallel()

	ts := newServer(t)

	status, _ := post(t, ts, "theme=neon", stacks)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = post(t, ts, "node_thres=lots", stacks)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = post(t, ts, "", "main;work")
	require.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = post(t, ts, "format=perf", stacks)
	require.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = post(t, ts, "root=nothere", stacks)
	require.Equal(t, http.StatusNotFound, status)

	status, _ = post(t, ts, "", strings.Repeat("main;work 1\n", 200))
	require.Equal(t, http.StatusRequestEntityTooLarge, status)

	m := metrics(t, ts)
	require.Contains(t, m, `profgraph_render_requests_total{format="unknown",status="bad_request"} 2`)
	require.Contains(t, m, `profgraph_render_requests_total{format="collapsed",status="bad_profile"} 1`)
	require.Contains(t, m, `profgraph_render_requests_total{format="collapsed",status="too_large"} 1`)
	require.Contains(t, m, `profgraph_render_requests_total{format="perf",status="bad_profile"} 1`)
	require.Contains(t, m, `profgraph_render_requests_total{format="collapsed",status="not_found"} 1`)
	require.Contains(t, m, `profgraph_diagnostics_total{level="warn"} 3`)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	ts := newServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/render")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestReadConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte(`
listen: ":9000"
defaults:
  format: callgrind
  theme: gray
  node_threshold: 1
`), 0o644)
	require.NoError(t, err)

	cfg, err := serve.ReadConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Listen)
	require.Equal(t, profile.FormatCallgrind, cfg.Defaults.Format)
	require.Equal(t, "gray", cfg.Defaults.Theme)
	require.InDelta(t, 1, cfg.Defaults.NodeThreshold, 1e-9)
	// Unset fields keep their defaults.
	require.InDelta(t, 0.1, cfg.Defaults.EdgeThreshold, 1e-9)
	require.Equal(t, graph.TotalCallRatios, cfg.Defaults.Method)
	require.Equal(t, "profgraph", cfg.Namespace)

	_, err = serve.ReadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
