package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ternarybob/prdforge/internal/prd"
	"github.com/ternarybob/prdforge/internal/store"
)

// Documents is the saved-document repository.
type Documents interface {
	Create(ctx context.Context, in store.CreateInput) (*prd.StoredDocument, error)
	Get(ctx context.Context, id string) (*prd.StoredDocument, error)
	List(ctx context.Context, status string) ([]*prd.StoredDocument, error)
	Search(ctx context.Context, title, status string) ([]*prd.StoredDocument, error)
	Update(ctx context.Context, id string, in store.UpdateInput) (*prd.StoredDocument, error)
	Delete(ctx context.Context, id string) error
	SaveVersion(ctx context.Context, id, note string) (*prd.StoredDocument, error)
}

var _ Documents = (*store.Repository)(nil)

// MessageResponse carries a human-readable outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// SaveVersionRequest is the request body for save-version.
type SaveVersionRequest struct {
	VersionNote string `json:"versionNote"`
}

// SaveVersionResponse describes a created version copy.
type SaveVersionResponse struct {
	Success   bool   `json:"success"`
	VersionID string `json:"versionId"`
	Version   string `json:"version"`
	Message   string `json:"message"`
}

func (s *Server) handleSaveDocument(w http.ResponseWriter, r *http.Request) {
	var req store.CreateInput
	if !decodeJSON(w, r, &req) {
		return
	}

	doc, err := s.docs.Create(r.Context(), req)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Info().Str("id", doc.ID).Str("title", doc.Title).Msg("PRD saved")
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	var req store.UpdateInput
	if !decodeJSON(w, r, &req) {
		return
	}

	doc, err := s.docs.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.docs.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(docs))
}

func (s *Server) handleSearchDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	docs, err := s.docs.Search(r.Context(), q.Get("title"), q.Get("status"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(docs))
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleExportDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	content, err := prd.ParseDocument(doc.Content)
	if err != nil {
		writeErrorDetails(w, http.StatusUnprocessableEntity, "Content is not a PRD document", err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.ID+".md"))
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "# %s\n\n%s\n", doc.Title, prd.Markdown(content))
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.docs.Delete(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Info().Str("id", id).Msg("PRD deleted")
	writeJSON(w, http.StatusOK, MessageResponse{Message: "PRD deleted"})
}

func (s *Server) handleSaveVersion(w http.ResponseWriter, r *http.Request) {
	var req SaveVersionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	copyDoc, err := s.docs.SaveVersion(r.Context(), chi.URLParam(r, "id"), req.VersionNote)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SaveVersionResponse{
		Success:   true,
		VersionID: copyDoc.ID,
		Version:   copyDoc.Version.String(),
		Message:   fmt.Sprintf("Version %s saved", copyDoc.Version),
	})
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "PRD not found")
	case errors.Is(err, store.ErrInvalidStatus), errors.Is(err, store.ErrMissingContent):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg("Store operation failed")
		writeErrorDetails(w, http.StatusInternalServerError, "Storage error", err.Error())
	}
}

func nonNil(docs []*prd.StoredDocument) []*prd.StoredDocument {
	if docs == nil {
		return []*prd.StoredDocument{}
	}
	return docs
}
