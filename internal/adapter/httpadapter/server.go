package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/space-weather-etl/internal/correlate"
	"github.com/couchcryptid/space-weather-etl/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ChartBuilder builds the correlation chart.
type ChartBuilder interface {
	Build(ctx context.Context) (correlate.Chart, error)
}

// Server exposes health, readiness, metrics and the on-demand ingest and
// correlation endpoints.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, and /metrics routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			// Ingest requests hold the connection for a full fetch and write.
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		mux:    mux,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// HandleIngest registers POST /ingest/{feed}. The optional start_date and
// end_date query parameters default to the trailing windowDays.
func (s *Server) HandleIngest(runner pipeline.Runner, feeds map[string]pipeline.Feed, windowDays int, clock clockwork.Clock) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s.mux.HandleFunc("POST /ingest/{feed}", func(w http.ResponseWriter, r *http.Request) {
		feed, ok := feeds[r.PathValue("feed")]
		if !ok {
			sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "unknown feed " + r.PathValue("feed")})
			return
		}

		window := pipeline.TrailingWindow(clock.Now().UTC(), windowDays)
		q := r.URL.Query()
		if start, end := q.Get("start_date"), q.Get("end_date"); start != "" || end != "" {
			if start == "" {
				start = window.Start.Format(pipeline.DateLayout)
			}
			if end == "" {
				end = window.End.Format(pipeline.DateLayout)
			}
			var err error
			if window, err = pipeline.ParseWindow(start, end); err != nil {
				sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
		}

		report, err := runner.Run(r.Context(), feed, window)
		if err != nil {
			s.logger.Error("ingest request failed", "feed", feed.Name, "error", err)
			sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "report": report})
			return
		}
		sharedobs.WriteJSON(w, http.StatusOK, report)
	})
}

// HandleCorrelation registers GET /correlation, which returns the chart as JSON.
func (s *Server) HandleCorrelation(builder ChartBuilder) {
	s.mux.HandleFunc("GET /correlation", func(w http.ResponseWriter, r *http.Request) {
		chart, err := builder.Build(r.Context())
		switch {
		case errors.Is(err, correlate.ErrStoreUnavailable):
			sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		case err != nil:
			s.logger.Error("correlation request failed", "error", err)
			sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		default:
			sharedobs.WriteJSON(w, http.StatusOK, chart)
		}
	})
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// Readiness combines checkers; the first failure wins.
type Readiness []sharedobs.ReadinessChecker

func (rs Readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range rs {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
