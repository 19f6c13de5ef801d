// Package store persists saved documents and their version lineage.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prdforge/internal/config"
	"github.com/ternarybob/prdforge/internal/prd"
)

var (
	// ErrNotFound is returned when a document id is unknown.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidStatus is returned for a status outside the lifecycle set.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrMissingContent is returned when a document is saved without content.
	ErrMissingContent = errors.New("content is required")
)

// Backend persists StoredDocuments keyed by id. Implementations need not
// be safe for concurrent read-modify-write; Repository serializes those.
type Backend interface {
	Get(ctx context.Context, id string) (*prd.StoredDocument, error)
	Put(ctx context.Context, doc *prd.StoredDocument) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*prd.StoredDocument, error)
	Close() error
}

// Open returns the backend selected by cfg.
func Open(cfg *config.Config, logger arbor.ILogger) (Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendFile, "":
		b, err := NewFileBackend(cfg.DocumentsDir(), logger)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("dir", b.Dir()).Msg("Document store opened (file)")
		return b, nil
	case config.BackendSQLite:
		b, err := OpenSQLite(cfg.DatabasePath())
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", b.Path()).Msg("Document store opened (sqlite)")
		return b, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}
