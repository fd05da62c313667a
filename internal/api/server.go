package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"backoffice/internal/availability"
	"backoffice/internal/metrics"
	"backoffice/internal/reconciler"
	"backoffice/internal/schedule"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Reconciler is the part of the reconciler the API triggers.
type Reconciler interface {
	RunNow(ctx context.Context) (reconciler.Stats, error)
}

type Config struct {
	Port           int
	APIKey         string
	WriteRateLimit float64 // requests per second, 0 disables
	WriteBurst     int
}

// HTTPServer exposes the availability service over REST/JSON.
type HTTPServer struct {
	config     Config
	svc        *availability.Service
	reconciler Reconciler
	metrics    *metrics.Metrics
	limiter    *rate.Limiter
	logger     zerolog.Logger
	server     *http.Server
}

func NewHTTPServer(cfg Config, svc *availability.Service, rec Reconciler, m *metrics.Metrics, logger zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		config:     cfg,
		svc:        svc,
		reconciler: rec,
		metrics:    m,
		logger:     logger.With().Str("component", "api").Logger(),
	}
	if cfg.WriteRateLimit > 0 {
		burst := cfg.WriteBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.WriteRateLimit), burst)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("GET /api/categories/{id}/schedule", s.handleGetSchedule)
	mux.HandleFunc("PUT /api/categories/{id}/schedule", s.handleSetSchedule)
	mux.HandleFunc("GET /api/categories/{id}/overrides", s.handleGetOverrides)
	mux.HandleFunc("POST /api/categories/{id}/pause", s.handleSetPause)
	mux.HandleFunc("POST /api/categories/{id}/sold-out", s.handleSetSoldOut)
	mux.HandleFunc("GET /api/categories/{id}/availability", s.handleCategoryAvailability)

	mux.HandleFunc("GET /api/items/{id}/availability", s.handleItemAvailability)

	mux.HandleFunc("GET /api/specials/{id}/availability", s.handleSpecialAvailability)
	mux.HandleFunc("PUT /api/specials/{id}/days", s.handleSetSpecialDays)
	mux.HandleFunc("POST /api/specials/{id}/pause", s.handleSetSpecialPause)
	mux.HandleFunc("GET /api/special-hours", s.handleListSpecialHours)
	mux.HandleFunc("PUT /api/special-hours/{day}", s.handleSetSpecialHours)

	mux.HandleFunc("GET /api/menu", s.handleMenu)
	mux.HandleFunc("POST /api/reconcile", s.handleReconcile)
	mux.HandleFunc("GET /api/reports/availability.xlsx", s.handleReport)

	return s.instrument(mux, s.auth(s.throttle(mux)))
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("API server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *HTTPServer) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.APIKey != "" && r.Header.Get("x-api-key") != s.config.APIKey {
			writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// throttle limits write requests; reads are not limited.
func (s *HTTPServer) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && r.Method != http.MethodGet && !s.limiter.Allow() {
			s.metrics.IncRateLimited()
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many write requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument labels requests with the mux pattern they match, resolved up
// front so requests rejected by auth or throttling count under their route.
func (s *HTTPServer) instrument(mux *http.ServeMux, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		_, route := mux.Handler(r)
		if route == "" {
			route = "unmatched"
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.metrics.IncHTTPRequest(route, rec.status)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

type errorResponse struct {
	Error  string       `json:"error"`
	Code   string       `json:"code"`
	Issues []issueError `json:"issues,omitempty"`
}

type issueError struct {
	Day      string `json:"day,omitempty"`
	DayIndex *int   `json:"dayIndex,omitempty"`
	Message  string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeServiceError maps service errors to status codes.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	var verr *schedule.ValidationError
	switch {
	case errors.As(err, &verr):
		resp := errorResponse{Error: verr.Error(), Code: "validation_failed"}
		for _, is := range verr.Issues {
			ie := issueError{Message: is.Message}
			if is.Day != nil {
				d := int(*is.Day)
				ie.Day = is.Day.String()
				ie.DayIndex = &d
			}
			resp.Issues = append(resp.Issues, ie)
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, availability.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "canceled", "request canceled")
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
