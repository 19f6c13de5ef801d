// Package intake accepts survey submissions and generates a draft document
// for each one in the background.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prdforge/internal/fileutil"
	"github.com/ternarybob/prdforge/internal/prd"
	"github.com/ternarybob/prdforge/internal/store"
)

// SurveyTag marks documents generated from survey submissions.
const SurveyTag = "survey"

// DefaultTimeout bounds one background generation.
const DefaultTimeout = 10 * time.Minute

// ErrEmptySubmission is returned when clientInfo carries no answers.
var ErrEmptySubmission = errors.New("clientInfo is required")

// ErrSubmissionNotFound is returned by Get for unknown or malformed ids.
var ErrSubmissionNotFound = errors.New("submission not found")

// Record states.
const (
	StatusReceived  = "received"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Submission is a survey form post.
type Submission struct {
	ClientInfo map[string]any `json:"clientInfo"`
	Timestamp  string         `json:"timestamp,omitempty"`
}

// Receipt acknowledges an accepted submission.
type Receipt struct {
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Record is the persisted submission with its processing outcome.
type Record struct {
	ID         string     `json:"id"`
	ReceivedAt time.Time  `json:"receivedAt"`
	Status     string     `json:"status"`
	Submission Submission `json:"submission"`
	DocumentID string     `json:"documentId,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Generator produces a document from an idea.
type Generator interface {
	Run(ctx context.Context, input string) (*prd.Document, error)
}

// Saver persists generated documents.
type Saver interface {
	Create(ctx context.Context, in store.CreateInput) (*prd.StoredDocument, error)
}

// Intake persists submissions and drives background generation.
type Intake struct {
	dir       string
	generator Generator
	saver     Saver
	timeout   time.Duration
	now       func() time.Time
	logger    arbor.ILogger

	mu sync.Mutex // guards record files
	wg sync.WaitGroup
}

// New creates an intake writing submissions under dir. timeout <= 0 uses
// DefaultTimeout.
func New(dir string, generator Generator, saver Saver, timeout time.Duration, logger arbor.ILogger) *Intake {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Intake{
		dir:       dir,
		generator: generator,
		saver:     saver,
		timeout:   timeout,
		now:       time.Now,
		logger:    logger,
	}
}

// Submit persists sub and starts generation in the background. It returns
// as soon as the submission is on disk. The caller's context only bounds
// the write; generation runs detached with its own timeout.
func (i *Intake) Submit(ctx context.Context, sub Submission) (*Receipt, error) {
	if len(sub.ClientInfo) == 0 {
		return nil, ErrEmptySubmission
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec := &Record{
		ID:         uuid.NewString(),
		ReceivedAt: i.now(),
		Status:     StatusReceived,
		Submission: sub,
	}
	if err := i.write(rec); err != nil {
		return nil, err
	}

	i.logger.Info().Str("submission", rec.ID).Msg("Survey submission received")

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.process(rec)
	}()

	return &Receipt{ID: rec.ID, ReceivedAt: rec.ReceivedAt}, nil
}

// Wait blocks until all background generations finish.
func (i *Intake) Wait() {
	i.wg.Wait()
}

// Get reads a persisted submission record.
func (i *Intake) Get(id string) (*Record, error) {
	if err := uuid.Validate(id); err != nil {
		return nil, ErrSubmissionNotFound
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	var rec Record
	if err := fileutil.ReadJSON(i.path(id), &rec); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (i *Intake) process(rec *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), i.timeout)
	defer cancel()

	start := time.Now()
	doc, err := i.generate(ctx, rec)
	if err != nil {
		i.logger.Error().Err(err).Str("submission", rec.ID).Msg("Survey generation failed")
		rec.Status = StatusFailed
		rec.Error = err.Error()
	} else {
		i.logger.Info().
			Str("submission", rec.ID).
			Str("document", doc.ID).
			Str("duration", time.Since(start).Round(time.Millisecond).String()).
			Msg("Survey draft saved")
		rec.Status = StatusCompleted
		rec.DocumentID = doc.ID
	}

	if err := i.write(rec); err != nil {
		i.logger.Warn().Err(err).Str("submission", rec.ID).Msg("Failed to update submission record")
	}
}

func (i *Intake) generate(ctx context.Context, rec *Record) (*prd.StoredDocument, error) {
	doc, err := i.generator.Run(ctx, IdeaText(rec.Submission.ClientInfo))
	if err != nil {
		return nil, err
	}
	content, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return i.saver.Create(ctx, store.CreateInput{
		Title:   Title(rec.Submission.ClientInfo, rec.ReceivedAt),
		Content: content,
		Status:  string(prd.StatusDraft),
		Tags:    []string{SurveyTag},
	})
}

func (i *Intake) write(rec *Record) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := fileutil.WriteJSON(i.path(rec.ID), rec); err != nil {
		return fmt.Errorf("persist submission: %w", err)
	}
	return nil
}

func (i *Intake) path(id string) string {
	return filepath.Join(i.dir, id+".json")
}

// ideaKeys are rendered first, in this order.
var ideaKeys = []string{"idea", "projectName", "projectDescription", "description", "requirements", "features", "targetUsers"}

// IdeaText renders survey answers as the free-text idea fed to the
// pipeline. Well-known idea fields lead; the rest follow by key.
func IdeaText(info map[string]any) string {
	seen := make(map[string]bool, len(info))
	var lines []string
	add := func(k string) {
		if seen[k] {
			return
		}
		seen[k] = true
		if v := formatValue(info[k]); v != "" {
			lines = append(lines, k+": "+v)
		}
	}

	for _, k := range ideaKeys {
		if _, ok := info[k]; ok {
			add(k)
		}
	}
	rest := make([]string, 0, len(info))
	for k := range info {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	for _, k := range rest {
		add(k)
	}
	return strings.Join(lines, "\n")
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := formatValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

// Title names the draft after the company or project when given.
func Title(info map[string]any, at time.Time) string {
	for _, k := range []string{"projectName", "companyName", "name"} {
		if s, ok := info[k].(string); ok && strings.TrimSpace(s) != "" {
			return "Survey: " + strings.TrimSpace(s)
		}
	}
	return "Survey submission " + at.Format("2006-01-02 15:04")
}
