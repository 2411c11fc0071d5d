package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/equityrun/internal/persistence"
)

// StatusSnapshot is the read model the server exposes. The engine loop owns
// the live state; it hands the server a snapshot function so readers never
// touch mutable state directly.
type StatusSnapshot struct {
	Timestamp           time.Time `json:"timestamp"`
	Equity              float64   `json:"equity"`
	PeakEquity          float64   `json:"peak_equity"`
	DrawdownPct         float64   `json:"drawdown_pct"`
	DailyPnLPct         float64   `json:"daily_pnl_pct"`
	SafeMode            bool      `json:"safe_mode"`
	TradingStoppedToday bool      `json:"trading_stopped_today"`
	DayTradesInWindow   int       `json:"day_trades_in_window"`
	AvgSlippageBps      float64   `json:"avg_slippage_bps"`
	StrategyBlocked     bool      `json:"strategy_blocked"`
}

// SnapshotFunc returns the current engine status.
type SnapshotFunc func() StatusSnapshot

// SummarizeFunc returns the journal summary for a day. Nil when no journal
// is configured.
type SummarizeFunc func(ctx context.Context, day time.Time) (*persistence.DailySummary, error)

// ServerConfig holds the listen address and timeouts.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig binds to localhost only.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "127.0.0.1",
		Port:         8080,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server is the read-only status server. It never mutates engine state.
type Server struct {
	router    *mux.Router
	server    *http.Server
	config    ServerConfig
	snapshot  SnapshotFunc
	summarize SummarizeFunc
	metrics   http.Handler
}

// NewServer wires the routes. metricsHandler may be nil to disable /metrics,
// summarize may be nil to disable /summary.
func NewServer(config ServerConfig, snapshot SnapshotFunc, summarize SummarizeFunc, metricsHandler http.Handler) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		config:    config,
		snapshot:  snapshot,
		summarize: summarize,
		metrics:   metricsHandler,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/risk", s.handleRisk).Methods("GET")
	s.router.HandleFunc("/summary/{date}", s.handleSummary).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods("GET")
	}
	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	if s.snapshot == nil {
		writeError(w, http.StatusServiceUnavailable, "status snapshot not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.summarize == nil {
		writeError(w, http.StatusServiceUnavailable, "journal not configured")
		return
	}
	day, err := time.Parse("2006-01-02", mux.Vars(r)["date"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	summary, err := s.summarize(r.Context(), day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "summary query failed")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// Start blocks serving until shutdown or listen failure.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("status server listening")
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
