package pipeline

import (
	"bytes"
	"fmt"
	"io/fs"
	"text/template"

	"github.com/ternarybob/prdforge"
)

// Prompt template names.
const (
	promptAnalysis         = "analysis.md"
	promptAnalysisFallback = "analysis_fallback.md"
	promptSynthesis        = "synthesis.md"
	promptQuestions        = "questions.md"
	promptRefine           = "refine.md"
)

// Prompts renders the generation prompt templates.
type Prompts struct {
	tmpl *template.Template
}

// DefaultPrompts loads the templates embedded in the binary.
func DefaultPrompts() (*Prompts, error) {
	return LoadPrompts(prdforge.Prompts)
}

// LoadPrompts parses prompts/*.md from fsys. Every template the pipeline
// uses must be present.
func LoadPrompts(fsys fs.FS) (*Prompts, error) {
	tmpl, err := template.New("prompts").Option("missingkey=error").ParseFS(fsys, "prompts/*.md")
	if err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	for _, name := range []string{promptAnalysis, promptAnalysisFallback, promptSynthesis, promptQuestions, promptRefine} {
		if tmpl.Lookup(name) == nil {
			return nil, fmt.Errorf("prompt template missing: %s", name)
		}
	}
	return &Prompts{tmpl: tmpl}, nil
}

func (p *Prompts) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

type analysisPrompt struct {
	Today      string
	Period     string
	Guidelines string
	Input      string
	Insights   string
}

type synthesisPrompt struct {
	Guidelines   string
	VariantNotes string
	Analysis     string
	Schema       string
}

type questionsPrompt struct {
	Input    string
	Analysis string
}

type refinePrompt struct {
	Analysis string
	Answers  []string
}
