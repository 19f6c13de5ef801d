// Package api provides the REST API for prdforge.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prdforge/internal/config"
	"github.com/ternarybob/prdforge/internal/intake"
	"github.com/ternarybob/prdforge/internal/pipeline"
	"github.com/ternarybob/prdforge/internal/prd"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 5 << 20

// Generator runs the generation pipeline.
type Generator interface {
	RunWithAnswers(ctx context.Context, input string, answers []string) (*prd.Document, error)
	Questions(ctx context.Context, input string) (*pipeline.QuestionSet, error)
}

// Submitter accepts survey submissions.
type Submitter interface {
	Submit(ctx context.Context, sub intake.Submission) (*intake.Receipt, error)
	Get(id string) (*intake.Record, error)
}

// Server represents the API server.
type Server struct {
	cfg       *config.Config
	router    chi.Router
	generator Generator
	docs      Documents
	intake    Submitter
	logger    arbor.ILogger
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, generator Generator, docs Documents, submitter Submitter, logger arbor.ILogger) *Server {
	s := &Server{
		cfg:       cfg,
		generator: generator,
		docs:      docs,
		intake:    submitter,
		logger:    logger,
	}

	s.setupRouter()
	return s
}

// setupRouter configures all routes.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if secs := s.cfg.API.RequestTimeoutSeconds; secs > 0 {
		r.Use(middleware.Timeout(time.Duration(secs) * time.Second))
	}

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.API.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Optional API key authentication
	if s.cfg.API.APIKey != "" {
		r.Use(s.apiKeyAuth)
	}

	// Health and version endpoints (no auth)
	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate-prd", s.handleGenerate)
		r.Post("/questions", s.handleQuestions)
		r.Post("/submit-consultation-request", s.handleSubmitConsultation)
		r.Get("/submissions/{id}", s.handleGetSubmission)

		r.Route("/prd", func(r chi.Router) {
			r.Post("/save", s.handleSaveDocument)
			r.Get("/list", s.handleListDocuments)
			r.Get("/search", s.handleSearchDocuments)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDocument)
				r.Put("/", s.handleUpdateDocument)
				r.Delete("/", s.handleDeleteDocument)
				r.Get("/export", s.handleExportDocument)
				r.Post("/save-version", s.handleSaveVersion)
			})
		})
	})

	s.router = r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// apiKeyAuth is middleware that validates API key.
func (s *Server) apiKeyAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth for health and version
		if r.URL.Path == "/health" || r.URL.Path == "/version" {
			next.ServeHTTP(w, r)
			return
		}

		// Check API key header
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey != s.cfg.API.APIKey {
			writeError(w, http.StatusUnauthorized, "Invalid or missing API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}
