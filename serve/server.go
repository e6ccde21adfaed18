// Package serve exposes profile rendering over HTTP.
package serve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Emyrk/profgraph/graph"
	"github.com/Emyrk/profgraph/profile"
	"github.com/Emyrk/profgraph/render"
)

type Server struct {
	cfg     Config
	logger  zerolog.Logger
	reg     *prometheus.Registry
	metrics *Collector
}

func New(cfg Config, logger zerolog.Logger) (*Server, error) {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultConfig().Namespace
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	if _, err := render.LookupTheme(cfg.Defaults.Theme); err != nil {
		return nil, fmt.Errorf("default theme: %w", err)
	}

	reg := prometheus.NewRegistry()
	metrics := NewCollector(cfg.Namespace)
	err := reg.Register(metrics)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	err = reg.Register(collectors.NewGoCollector())
	if err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	return &Server{
		cfg:     cfg,
		logger:  logger,
		reg:     reg,
		metrics: metrics,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /render", s.handleRender)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{
		Registry: s.reg,
	}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// ListenAndServe serves until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info().Str("listen", s.cfg.Listen).Msg("serving")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// request is one render request decoded from query parameters.
type request struct {
	format profile.Format
	parse  profile.Options
	prune  graph.PruneOptions
	roots  []string
	leaves []string
	depth  int
	output render.OutputFormat
	theme  render.Theme
	strip  bool
	wrap   bool
	top    int
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, err := s.parseRequest(r)
	if err != nil {
		s.metrics.observe("unknown", "bad_request", time.Since(start))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	logger := s.logger.With().
		Str("format", string(req.format)).
		Str("remote", r.RemoteAddr).
		Logger().
		Hook(s.metrics)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		logger.Warn().Err(err).Msg("read body")
		status := http.StatusBadRequest
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			status = http.StatusRequestEntityTooLarge
		}
		s.metrics.observe(string(req.format), "too_large", time.Since(start))
		http.Error(w, err.Error(), status)
		return
	}

	p, err := profile.Load(req.format, bytes.NewReader(body), req.parse, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("load profile")
		s.metrics.observe(string(req.format), "bad_profile", time.Since(start))
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	cycles := len(p.Cycles())

	p.Prune(req.prune)
	err = p.Focus(req.roots, req.leaves, req.depth)
	if err != nil {
		s.metrics.observe(string(req.format), "not_found", time.Since(start))
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	var out bytes.Buffer
	err = render.Render(&out, p, render.Options{
		Format: req.output,
		Theme:  req.theme,
		Strip:  req.strip,
		Wrap:   req.wrap,
		Top:    req.top,
	})
	if err != nil {
		logger.Error().Err(err).Msg("render")
		s.metrics.observe(string(req.format), "error", time.Since(start))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.metrics.setGraph(p, cycles)
	s.metrics.observe(string(req.format), "ok", time.Since(start))
	logger.Debug().
		Int("functions", p.Len()).
		Int("cycles", cycles).
		Dur("took", time.Since(start)).
		Msg("rendered")

	w.Header().Set("Content-Type", req.output.ContentType())
	_, _ = w.Write(out.Bytes())
}

func (s *Server) parseRequest(r *http.Request) (request, error) {
	q := r.URL.Query()
	d := s.cfg.Defaults
	req := request{
		format: profile.Format(get(q, "format", string(d.Format))),
		output: render.OutputFormat(get(q, "output", string(d.Output))),
		parse: profile.Options{
			SampleType: q.Get("sample_type"),
			Event:      q.Get("event"),
			Method:     graph.TotalMethod(get(q, "total", string(d.Method))),
		},
		roots:  q["root"],
		leaves: q["leaf"],
		depth:  -1,
	}

	var err error
	req.theme, err = render.LookupTheme(get(q, "theme", d.Theme))
	if err != nil {
		return req, err
	}

	nodeThres, err := percent(q, "node_thres", d.NodeThreshold)
	if err != nil {
		return req, err
	}
	edgeThres, err := percent(q, "edge_thres", d.EdgeThreshold)
	if err != nil {
		return req, err
	}
	req.prune = graph.PruneOptions{
		NodeThreshold:   nodeThres,
		EdgeThreshold:   edgeThres,
		Paths:           q["path"],
		ColorBySelfTime: q.Has("color_by_self"),
	}

	if v := q.Get("depth"); v != "" {
		req.depth, err = strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("depth: %w", err)
		}
	}
	if v := q.Get("top"); v != "" {
		req.top, err = strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("top: %w", err)
		}
	}
	req.strip, err = boolean(q, "strip", d.Strip)
	if err != nil {
		return req, err
	}
	req.wrap, err = boolean(q, "wrap", d.Wrap)
	if err != nil {
		return req, err
	}
	return req, nil
}

func get(q map[string][]string, key, def string) string {
	if v, ok := q[key]; ok && len(v) > 0 && v[0] != "" {
		return v[0]
	}
	return def
}

// percent reads a percentage parameter and returns it as a fraction.
func percent(q map[string][]string, key string, def float64) (float64, error) {
	v := get(q, key, "")
	if v == "" {
		return def / 100, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f / 100, nil
}

func boolean(q map[string][]string, key string, def bool) (bool, error) {
	v := get(q, key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
