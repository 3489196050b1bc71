// Package pathgen defines the domain types shared by the intake API, the
// generation worker, and the outcome reconciler: the stage machine a trace
// moves through, the event payloads carried on the bus, and the learning
// path content itself.
package pathgen

// Stage is a named point in the generation pipeline.
type Stage string

const (
	StageAnalyzing   Stage = "analyzing"
	StageResearching Stage = "researching"
	StageGenerating  Stage = "generating"
	StageEnriching   Stage = "enriching"
	StageCompleted   Stage = "completed"
	StageError       Stage = "error"
)

// stageOrder positions each non-error stage on the pipeline. The error stage
// has no position: it is reachable from any non-terminal stage.
var stageOrder = map[Stage]int{
	StageAnalyzing:   0,
	StageResearching: 1,
	StageGenerating:  2,
	StageEnriching:   3,
	StageCompleted:   4,
}

// Valid reports whether s is one of the enumerated stages.
func (s Stage) Valid() bool {
	if s == StageError {
		return true
	}
	_, ok := stageOrder[s]
	return ok
}

// Terminal reports whether a trace that reached s receives further updates.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageError
}

// Before reports whether s precedes other on the pipeline. Error compares
// before nothing and nothing compares before error.
func (s Stage) Before(other Stage) bool {
	a, aok := stageOrder[s]
	b, bok := stageOrder[other]
	return aok && bok && a < b
}

// ClampProgress bounds a progress percentage to [0, 100].
func ClampProgress(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
