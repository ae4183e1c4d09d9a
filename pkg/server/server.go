// pkg/server/server.go
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/David-Botos/data-quality/pkg/archive"
	"github.com/David-Botos/data-quality/pkg/engine"
	"github.com/David-Botos/data-quality/pkg/model"
)

// DefaultUploadMaxBytes caps an upload request body
const DefaultUploadMaxBytes = 16 << 20

const serviceName = "Data Quality Checker API"

// Options configures the HTTP boundary
type Options struct {
	// UploadMaxBytes caps the multipart body, 0 means DefaultUploadMaxBytes
	UploadMaxBytes int64
	// Sample checks each upload against a freshly seeded temporary database
	Sample bool
	// TempDir holds per-request sample databases, empty means os.TempDir
	TempDir string
	// QueryTimeout bounds each rule evaluation
	QueryTimeout time.Duration
	// CoupleOutlierChecks only runs outlier rules alongside max_count_check
	CoupleOutlierChecks bool
}

// Server exposes the engine and the archive over HTTP
type Server struct {
	opts    Options
	store   engine.DataStore
	archive *archive.ResultsArchive
	logger  *zap.Logger
	now     func() time.Time
	router  chi.Router
}

// New builds the server. store may be nil in sample mode; archive may be nil,
// in which case the results endpoints are not mounted.
func New(opts Options, store engine.DataStore, results *archive.ResultsArchive, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.L()
	}
	if store == nil && !opts.Sample {
		return nil, errors.New("a data store is required unless sample mode is on")
	}
	if opts.UploadMaxBytes <= 0 {
		opts.UploadMaxBytes = DefaultUploadMaxBytes
	}

	s := &Server{
		opts:    opts,
		store:   store,
		archive: results,
		logger:  logger.Named("server"),
		now:     time.Now,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, model.CodeNotFound, "Endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, model.CodeMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/data-quality-check", s.handleCheck)
		r.Get("/sample-configs", s.handleSampleConfigs)

		if s.archive != nil {
			r.Route("/results", func(r chi.Router) {
				r.Get("/", s.handleListResults)
				r.Get("/{table}", s.handleViewResult)
				r.Delete("/{table}", s.handleDeleteResult)
			})
		}
	})

	return r
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP API listening", zap.String("addr", addr), zap.Bool("sample", s.opts.Sample))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
