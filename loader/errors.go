package loader

import "fmt"

// Stage is the step of a load that failed.
type Stage string

const (
	// StageFetch covers resolving the source and obtaining its bytes.
	StageFetch Stage = "fetch"
	// StageDecode covers unmarshaling the descriptor set.
	StageDecode Stage = "decode"
	// StageBuild covers building and indexing the tree.
	StageBuild Stage = "build"
)

// LoadError reports a failed load together with its source and stage.
type LoadError struct {
	Source string
	Stage  Stage
	Err    error
}

func (e *LoadError) Error() string {
	if e.Stage == StageFetch {
		return fmt.Sprintf("failed to fetch schema from %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("failed to process schema from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func newLoadError(source string, stage Stage, err error) *LoadError {
	return &LoadError{Source: source, Stage: stage, Err: err}
}
