package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prdforge/internal/fileutil"
	"github.com/ternarybob/prdforge/internal/prd"
)

const fileExt = ".json"

// FileBackend stores one <id>.json file per document in a flat directory.
// There is no index; List scans the directory.
type FileBackend struct {
	dir    string
	logger arbor.ILogger
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend creates the directory if needed.
func NewFileBackend(dir string, logger arbor.ILogger) (*FileBackend, error) {
	if err := fileutil.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create documents directory: %w", err)
	}
	return &FileBackend{dir: dir, logger: logger}, nil
}

// Dir returns the documents directory.
func (b *FileBackend) Dir() string {
	return b.dir
}

// path maps an id to its file. Only UUIDs are accepted so ids can never
// escape the directory.
func (b *FileBackend) path(id string) (string, error) {
	if err := uuid.Validate(id); err != nil {
		return "", ErrNotFound
	}
	return filepath.Join(b.dir, id+fileExt), nil
}

func (b *FileBackend) Get(ctx context.Context, id string) (*prd.StoredDocument, error) {
	path, err := b.path(id)
	if err != nil {
		return nil, err
	}

	var doc prd.StoredDocument
	if err := fileutil.ReadJSON(path, &doc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read document: %w", err)
	}
	return &doc, nil
}

func (b *FileBackend) Put(ctx context.Context, doc *prd.StoredDocument) error {
	path, err := b.path(doc.ID)
	if err != nil {
		return fmt.Errorf("invalid document id %q", doc.ID)
	}
	if err := fileutil.WriteJSON(path, doc); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

func (b *FileBackend) Delete(ctx context.Context, id string) error {
	path, err := b.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// List reads every document file. Unreadable files are logged and skipped.
func (b *FileBackend) List(ctx context.Context) ([]*prd.StoredDocument, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read documents directory: %w", err)
	}

	docs := make([]*prd.StoredDocument, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) || strings.HasPrefix(name, ".") {
			continue
		}

		var doc prd.StoredDocument
		if err := fileutil.ReadJSON(filepath.Join(b.dir, name), &doc); err != nil {
			b.logger.Warn().Err(err).Str("file", name).Msg("Skipping unreadable document")
			continue
		}
		docs = append(docs, &doc)
	}
	return docs, nil
}

func (b *FileBackend) Close() error {
	return nil
}
