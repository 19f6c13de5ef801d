package pipeline

import (
	"errors"
	"fmt"
)

// Stage names used in errors and logs.
const (
	StageAnalysis  = "analysis"
	StageSynthesis = "synthesis"
	StageQuestions = "questions"
	StageRefine    = "refine"
)

// ErrNoStrategies is returned when a stage has nothing to try.
var ErrNoStrategies = errors.New("no strategies configured")

// AnalysisError reports that every analysis strategy failed. Err is the
// last strategy's error.
type AnalysisError struct {
	Attempts int
	Err      error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// SynthesisError reports that every synthesis strategy failed, including
// strategies whose output failed document validation.
type SynthesisError struct {
	Attempts int
	Err      error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// PipelineError is the single terminal failure of a run.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline failed at %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Details returns the innermost error message.
func (e *PipelineError) Details() string {
	return Innermost(e.Err)
}

// Innermost returns the message of the deepest error in err's chain.
func Innermost(err error) string {
	if err == nil {
		return ""
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

// ErrEmptyInput is returned for a blank idea.
var ErrEmptyInput = errors.New("input is empty")
