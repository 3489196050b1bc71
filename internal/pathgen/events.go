package pathgen

import (
	"encoding/json"
	"time"
)

// Bus topics. The API publishes requests, the worker publishes exactly one
// terminal event per trace.
const (
	TopicPathRequested = "learning.path.requested"
	TopicPathGenerated = "learning.path.generated"
	TopicPathFailed    = "learning.path.failed"
)

// GoalLevel is the caller's target proficiency.
type GoalLevel string

const (
	GoalBeginner     GoalLevel = "beginner"
	GoalIntermediate GoalLevel = "intermediate"
	GoalAdvanced     GoalLevel = "advanced"
)

// Preferences narrows the resource types the generator should recommend.
type Preferences struct {
	IncludeVideos   bool `json:"includeVideos"`
	IncludeArticles bool `json:"includeArticles"`
	IncludeDocs     bool `json:"includeDocs"`
}

// WorkRequest is the payload of TopicPathRequested. Immutable once published.
type WorkRequest struct {
	UserID      string      `json:"userId"`
	Topic       string      `json:"topic"`
	Background  string      `json:"background"`
	GoalLevel   GoalLevel   `json:"goalLevel"`
	Preferences Preferences `json:"preferences"`
	TraceID     string      `json:"traceId"`
	RequestedAt time.Time   `json:"requestedAt"`
}

// Outcome discriminants. The producer sets Kind explicitly so consumers never
// have to infer success from payload shape.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// WorkOutcome is the terminal event payload for a trace. Kind decides the
// variant: Result is set for succeeded outcomes, Error for failed ones.
type WorkOutcome struct {
	Kind    string          `json:"kind"`
	UserID  string          `json:"userId"`
	Topic   string          `json:"topic"`
	TraceID string          `json:"traceId"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// WellFormed reports whether the outcome carries enough to act on: a known
// discriminant, a trace to correlate with, and the variant's payload.
func (o WorkOutcome) WellFormed() bool {
	if o.TraceID == "" || o.UserID == "" {
		return false
	}
	switch o.Kind {
	case OutcomeSucceeded:
		return len(o.Result) > 0
	case OutcomeFailed:
		return o.Error != ""
	}
	return false
}
