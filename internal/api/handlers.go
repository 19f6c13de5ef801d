package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ternarybob/prdforge/internal/intake"
	"github.com/ternarybob/prdforge/internal/pipeline"
	"github.com/ternarybob/prdforge/internal/prd"
)

// version is set via -ldflags at build time
var version = "dev"

// SetVersion sets the version string (called from main).
func SetVersion(v string) {
	version = v
}

// Response types

// HealthResponse is the response for /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// VersionResponse is the response for /version.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// GenerateRequest is the request body for /api/generate-prd. Answers may
// be a list of strings or an object mapping questions to answers.
type GenerateRequest struct {
	Idea    string          `json:"idea"`
	Answers json.RawMessage `json:"answers,omitempty"`
}

// GenerateResponse wraps a generated document.
type GenerateResponse struct {
	PRD       *prd.Document `json:"prd"`
	Questions []string      `json:"questions"`
}

// QuestionsRequest is the request body for /api/questions.
type QuestionsRequest struct {
	Idea string `json:"idea"`
}

// SubmitResponse acknowledges a survey submission.
type SubmitResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{
		Version: version,
		Service: "prdforge",
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Idea) == "" {
		writeError(w, http.StatusBadRequest, "idea is required")
		return
	}
	answers, err := parseAnswers(req.Answers)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := s.generator.RunWithAnswers(r.Context(), req.Idea, answers)
	if err != nil {
		s.writePipelineError(w, "Failed to generate PRD", err)
		return
	}

	writeJSON(w, http.StatusOK, GenerateResponse{PRD: doc, Questions: []string{}})
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	var req QuestionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Idea) == "" {
		writeError(w, http.StatusBadRequest, "idea is required")
		return
	}

	set, err := s.generator.Questions(r.Context(), req.Idea)
	if err != nil {
		s.writePipelineError(w, "Failed to generate questions", err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) handleSubmitConsultation(w http.ResponseWriter, r *http.Request) {
	var sub intake.Submission
	if !decodeJSON(w, r, &sub) {
		return
	}

	receipt, err := s.intake.Submit(r.Context(), sub)
	if err != nil {
		if errors.Is(err, intake.ErrEmptySubmission) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("Survey submission failed")
		writeErrorDetails(w, http.StatusInternalServerError, "Failed to accept submission", err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitResponse{
		Success: true,
		ID:      receipt.ID,
		Message: "Submission received. A draft PRD is being generated.",
	})
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	rec, err := s.intake.Get(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, intake.ErrSubmissionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeErrorDetails(w, http.StatusInternalServerError, "Failed to read submission", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) writePipelineError(w http.ResponseWriter, message string, err error) {
	if errors.Is(err, pipeline.ErrEmptyInput) {
		writeError(w, http.StatusBadRequest, "idea is required")
		return
	}

	details := pipeline.Innermost(err)
	var pe *pipeline.PipelineError
	if errors.As(err, &pe) {
		details = pe.Details()
		s.logger.Error().Err(err).Str("stage", pe.Stage).Msg(message)
	} else {
		s.logger.Error().Err(err).Msg(message)
	}
	writeErrorDetails(w, http.StatusInternalServerError, message, details)
}

// parseAnswers accepts ["a", ...] or {"question": "answer", ...}. Object
// entries become "question: answer" in key order.
func parseAnswers(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var byQuestion map[string]string
	if err := json.Unmarshal(raw, &byQuestion); err != nil {
		return nil, errors.New("answers must be a list of strings or an object of strings")
	}
	keys := make([]string, 0, len(byQuestion))
	for k := range byQuestion {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s: %s", k, byQuestion[k]))
	}
	return out, nil
}

// Helper functions

// decodeJSON reads a capped JSON body into v. It writes the error
// response and returns false on failure. An empty body leaves v unchanged.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	writeError(w, http.StatusBadRequest, "Invalid request body")
	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeErrorDetails(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, ErrorResponse{Error: message, Details: details})
}
