// Package api provides REST API endpoints for pairing document analysis.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pairing_analyzer/internal/filter"
	"pairing_analyzer/internal/header"
	"pairing_analyzer/internal/logger"
	"pairing_analyzer/internal/metrics"
	"pairing_analyzer/internal/parser"
	"pairing_analyzer/internal/pipeline"
	"pairing_analyzer/internal/progress"
	"pairing_analyzer/internal/storage"
)

// ShareSource answers fleet-level EDW share queries.
type ShareSource interface {
	EDWShareByFleet(ctx context.Context, bidPeriod string) ([]storage.FleetShare, error)
}

// Config holds configuration for the API server.
type Config struct {
	Port           int
	AuthEnabled    bool
	APIKeys        []string // List of valid API keys.
	AllowedOrigins []string // Empty allows any origin.
	MaxUploadBytes int64
	Timeout        time.Duration
}

// Server provides REST API access to pairing analyses.
type Server struct {
	cfg      Config
	apiKeys  map[string]bool
	rec      *storage.Recorder
	opts     pipeline.Options
	log      logger.Logger
	progress *progress.NATSReporter
	shares   ShareSource
	metrics  *Metrics
	registry *prometheus.Registry
}

// NewServer creates a new API server writing analyses through rec.
func NewServer(rec *storage.Recorder, opts pipeline.Options, cfg Config, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}

	reg := prometheus.NewRegistry()
	return &Server{
		cfg:      cfg,
		apiKeys:  keys,
		rec:      rec,
		opts:     opts,
		log:      log,
		metrics:  NewMetrics("pairing_analyzer", reg),
		registry: reg,
	}
}

// WithProgress publishes analysis progress through r.
func (s *Server) WithProgress(r *progress.NATSReporter) *Server {
	s.progress = r
	return s
}

// WithShares enables the fleet share endpoint.
func (s *Server) WithShares(src ShareSource) *Server {
	s.shares = src
	return s
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	r := chi.NewRouter()

	// Standard middleware.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.Timeout))

	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Mount("/api/v1", s.Router())

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("Pairing API starting", "addr", srv.Addr, "auth", s.cfg.AuthEnabled)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Router returns the configured chi router for embedding in other servers.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	// CORS for browser access.
	r.Use(s.corsMiddleware)

	// Health check (no auth required).
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		// Optional authentication.
		if s.cfg.AuthEnabled {
			r.Use(s.authMiddleware)
		}

		r.Post("/analyses", s.handleCreateAnalysis)
		r.Get("/analyses", s.handleListAnalyses)
		r.Get("/analyses/{id}", s.handleGetAnalysis)
		r.Get("/analyses/{id}/pairings", s.handleGetPairings)
		r.Get("/analyses/{id}/distribution", s.handleGetDistribution)
		r.Get("/analytics/edw-share", s.handleEDWShare)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// corsMiddleware adds CORS headers for browser access.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(s.cfg.AllowedOrigins))
	for _, o := range s.cfg.AllowedOrigins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := "*"
		if len(allowed) > 0 {
			origin = ""
			if o := r.Header.Get("Origin"); allowed[o] {
				origin = o
			}
		}
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check X-API-Key header first.
		apiKey := r.Header.Get("X-API-Key")

		// Fall back to Authorization: Bearer <key>.
		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		// Fall back to query parameter (for simple testing).
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// AnalysisResponse is returned when a document has been analysed.
type AnalysisResponse struct {
	storage.AnalysisSummary
	Metrics         metrics.Metrics  `json:"metrics"`
	Warnings        []parser.Warning `json:"warnings"`
	ProgressSubject string           `json:"progress_subject,omitempty"`
}

func (s *Server) handleCreateAnalysis(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Document too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to read body: "+err.Error())
		return
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		writeError(w, http.StatusBadRequest, "Empty document")
		return
	}

	opts := s.opts
	opts.ID = uuid.New()
	opts.Source = r.URL.Query().Get("source")

	var subject string
	if s.progress != nil {
		subject = s.progress.Subject(opts.ID.String())
		opts.Progress = s.progress.Reporter(opts.ID.String(), func(err error) {
			s.log.Warn("Progress publish failed", "analysis_id", opts.ID.String(), "error", err)
		})
	}

	start := time.Now()
	res, err := pipeline.Run(r.Context(), string(body), opts, s.log)
	s.metrics.AnalysisTime.Observe(time.Since(start).Seconds())
	if err != nil {
		var he *header.MalformedHeaderError
		var pe *parser.ParseError
		switch {
		case errors.As(err, &he):
			s.metrics.FailuresTotal.WithLabelValues("header").Inc()
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.As(err, &pe):
			s.metrics.FailuresTotal.WithLabelValues("parse").Inc()
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			s.metrics.FailuresTotal.WithLabelValues("other").Inc()
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if err := s.rec.Save(r.Context(), res); err != nil {
		s.metrics.FailuresTotal.WithLabelValues("store").Inc()
		s.log.Error("Failed to store analysis", "analysis_id", res.ID.String(), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to store analysis")
		return
	}

	s.metrics.AnalysesTotal.Inc()
	s.metrics.WarningsTotal.Add(float64(len(res.Warnings)))
	s.metrics.PairingsTotal.Add(float64(len(res.Pairings)))

	writeJSON(w, http.StatusCreated, AnalysisResponse{
		AnalysisSummary: storage.Summarise(res),
		Metrics:         res.Metrics,
		Warnings:        res.Warnings,
		ProgressSubject: subject,
	})
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := storage.ListParams{
		Base:      strings.ToUpper(q.Get("base")),
		Fleet:     strings.ToUpper(q.Get("fleet")),
		BidPeriod: q.Get("bid_period"),
	}
	for key, dst := range map[string]*int{"limit": &p.Limit, "offset": &p.Offset} {
		if v := q.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "Invalid "+key)
				return
			}
			*dst = n
		}
	}
	if p.Limit > 500 {
		p.Limit = 500
	}

	list, err := s.rec.Store.ListAnalyses(r.Context(), p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []storage.AnalysisSummary{}
	}
	writeJSON(w, http.StatusOK, list)
}

// loadAnalysis fetches the analysis named in the URL, writing the error response on failure.
func (s *Server) loadAnalysis(w http.ResponseWriter, r *http.Request) (*pipeline.Result, bool) {
	id := chi.URLParam(r, "id")
	res, err := s.rec.Store.GetAnalysis(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Analysis not found")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return res, true
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	res, ok := s.loadAnalysis(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PairingsResponse is the result of a filtered pairing query.
type PairingsResponse struct {
	Total    int         `json:"total"`
	Matched  int         `json:"matched"`
	Trips    int         `json:"trips"`
	Filter   string      `json:"filter"`
	Pairings interface{} `json:"pairings"`
}

func (s *Server) handleGetPairings(w http.ResponseWriter, r *http.Request) {
	spec, err := filter.ParseSpec(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, ok := s.loadAnalysis(w, r)
	if !ok {
		return
	}

	matched := filter.Apply(res.Pairings, spec)
	trips := 0
	for _, p := range matched {
		trips += p.Frequency
	}
	writeJSON(w, http.StatusOK, PairingsResponse{
		Total:    len(res.Pairings),
		Matched:  len(matched),
		Trips:    trips,
		Filter:   r.URL.RawQuery,
		Pairings: matched,
	})
}

// BucketResponse is one labelled histogram bucket.
type BucketResponse struct {
	Label string `json:"label"`
	metrics.Bucket
}

func (s *Server) handleGetDistribution(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	width := s.opts.Metrics.BucketWidth
	if v := q.Get("width"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid width")
			return
		}
		width = f
	}
	excludeTurns := false
	if v := q.Get("exclude_turns"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid exclude_turns")
			return
		}
		excludeTurns = b
	}

	res, ok := s.loadAnalysis(w, r)
	if !ok {
		return
	}

	buckets := res.Metrics.Distribution(width, excludeTurns)
	out := make([]BucketResponse, len(buckets))
	for i, b := range buckets {
		out[i] = BucketResponse{Label: b.Label(), Bucket: b}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEDWShare(w http.ResponseWriter, r *http.Request) {
	if s.shares == nil {
		writeError(w, http.StatusNotImplemented, "Analytics store not configured")
		return
	}
	shares, err := s.shares.EDWShareByFleet(r.Context(), r.URL.Query().Get("bid_period"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if shares == nil {
		shares = []storage.FleetShare{}
	}
	writeJSON(w, http.StatusOK, shares)
}

// Helper functions.

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
