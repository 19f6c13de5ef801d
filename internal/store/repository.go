package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/prdforge/internal/prd"
)

// DefaultTitle is used when a document is saved without a title.
const DefaultTitle = "Untitled PRD"

// Repository implements the document lifecycle over a Backend. It
// serializes read-modify-write operations within one process.
type Repository struct {
	mu      sync.Mutex
	backend Backend
	now     func() time.Time
	newID   func() string
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// NewRepository creates a repository over backend.
func NewRepository(backend Backend, opts ...Option) *Repository {
	r := &Repository{
		backend: backend,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close closes the backend.
func (r *Repository) Close() error {
	return r.backend.Close()
}

// CreateInput is a document save request.
type CreateInput struct {
	Title           string          `json:"title"`
	Content         json.RawMessage `json:"content"`
	Status          string          `json:"status,omitempty"`
	Tags            []string        `json:"tags,omitempty"`
	OriginalContent json.RawMessage `json:"originalContent,omitempty"`
}

// UpdateInput is a partial document update. Nil fields keep their stored
// value.
type UpdateInput struct {
	Title   *string         `json:"title,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
	Status  *string         `json:"status,omitempty"`
	Tags    *[]string       `json:"tags,omitempty"`
}

// Create saves a new document at version 1. Status defaults to draft.
func (r *Repository) Create(ctx context.Context, in CreateInput) (*prd.StoredDocument, error) {
	if isEmptyJSON(in.Content) {
		return nil, ErrMissingContent
	}
	status := prd.StatusDraft
	if in.Status != "" {
		s, err := prd.ParseStatus(in.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, in.Status)
		}
		status = s
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = DefaultTitle
	}

	now := r.now()
	doc := &prd.StoredDocument{
		ID:        r.newID(),
		Title:     title,
		Content:   in.Content,
		Status:    status,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		Tags:      tags(in.Tags),
	}
	if !isEmptyJSON(in.OriginalContent) {
		doc.OriginalContent = in.OriginalContent
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.backend.Put(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Get returns the document with id.
func (r *Repository) Get(ctx context.Context, id string) (*prd.StoredDocument, error) {
	return r.backend.Get(ctx, id)
}

// List returns documents with the given status (all when empty), newest
// UpdatedAt first.
func (r *Repository) List(ctx context.Context, status string) ([]*prd.StoredDocument, error) {
	docs, err := r.filter(ctx, status, func(*prd.StoredDocument) bool { return true })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].UpdatedAt.After(docs[j].UpdatedAt)
	})
	return docs, nil
}

// Search returns documents whose title starts with title, ignoring case,
// and that have the given status (any when empty). Results are ordered by
// title, then newest UpdatedAt first.
func (r *Repository) Search(ctx context.Context, title, status string) ([]*prd.StoredDocument, error) {
	prefix := strings.ToLower(title)
	docs, err := r.filter(ctx, status, func(d *prd.StoredDocument) bool {
		return strings.HasPrefix(strings.ToLower(d.Title), prefix)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Title != docs[j].Title {
			return docs[i].Title < docs[j].Title
		}
		return docs[i].UpdatedAt.After(docs[j].UpdatedAt)
	})
	return docs, nil
}

func (r *Repository) filter(ctx context.Context, status string, keep func(*prd.StoredDocument) bool) ([]*prd.StoredDocument, error) {
	if status != "" {
		if _, err := prd.ParseStatus(status); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
		}
	}

	all, err := r.backend.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*prd.StoredDocument, 0, len(all))
	for _, d := range all {
		if status != "" && string(d.Status) != status {
			continue
		}
		if keep(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Update applies in to the document, bumps its version by one and
// refreshes UpdatedAt.
func (r *Repository) Update(ctx context.Context, id string, in UpdateInput) (*prd.StoredDocument, error) {
	var status prd.Status
	if in.Status != nil {
		s, err := prd.ParseStatus(*in.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *in.Status)
		}
		status = s
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.backend.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil && strings.TrimSpace(*in.Title) != "" {
		doc.Title = strings.TrimSpace(*in.Title)
	}
	if !isEmptyJSON(in.Content) {
		doc.Content = in.Content
	}
	if status != "" {
		doc.Status = status
	}
	if in.Tags != nil {
		doc.Tags = tags(*in.Tags)
	}
	doc.Version = doc.Version.NextMajor()
	doc.UpdatedAt = r.now()

	if err := r.backend.Put(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete removes a document. Version copies and lineage entries that
// reference it are left untouched.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.Delete(ctx, id)
}

// SaveVersion snapshots the document with id as a new version copy. The
// copy hangs off the lineage root: the document itself, or its parent
// when id is already a copy. Its version is the root's latest version
// plus 0.1, and the root gains one versions entry.
func (r *Repository) SaveVersion(ctx context.Context, id, note string) (*prd.StoredDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, err := r.backend.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	root := src
	if src.ParentID != "" {
		root, err = r.backend.Get(ctx, src.ParentID)
		if err != nil {
			return nil, fmt.Errorf("lineage root %s: %w", src.ParentID, err)
		}
	}

	now := r.now()
	version := root.LatestVersion().NextMinor()
	copyDoc := &prd.StoredDocument{
		ID:              r.newID(),
		Title:           fmt.Sprintf("%s (v%s)", root.Title, version),
		Content:         src.Content,
		Status:          prd.StatusVersion,
		Version:         version,
		OriginalContent: src.OriginalContent,
		CreatedAt:       now,
		UpdatedAt:       now,
		Tags:            tags(src.Tags),
		ParentID:        root.ID,
		VersionNote:     note,
	}

	if err := r.backend.Put(ctx, copyDoc); err != nil {
		return nil, err
	}

	root.Versions = append(root.Versions, prd.VersionEntry{
		ID:        copyDoc.ID,
		Version:   version,
		Note:      note,
		CreatedAt: now,
	})
	if err := r.backend.Put(ctx, root); err != nil {
		return nil, err
	}
	return copyDoc, nil
}

func tags(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
