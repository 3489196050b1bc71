package pathgen

import "time"

// Resource is a single recommended learning material inside a module.
type Resource struct {
	Type        string `json:"type"` // video | article | documentation
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Difficulty  string `json:"difficulty,omitempty"`
}

// Module is one unit of a curriculum.
type Module struct {
	Order          int        `json:"order"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Objectives     []string   `json:"objectives"`
	KeyConcepts    []string   `json:"key_concepts"`
	EstimatedHours int        `json:"estimated_hours"`
	Prerequisites  []string   `json:"prerequisites"`
	Resources      []Resource `json:"resources,omitempty"`
}

// Curriculum is the structured study plan produced by the generator.
type Curriculum struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	TotalHours  int      `json:"total_hours"`
	Modules     []Module `json:"modules"`
}

// LearningPath is the full generated artifact carried in a succeeded
// outcome's Result field.
type LearningPath struct {
	UserID      string      `json:"userId"`
	Topic       string      `json:"topic"`
	Background  string      `json:"background"`
	GoalLevel   GoalLevel   `json:"goalLevel"`
	Preferences Preferences `json:"preferences"`
	Analysis    string      `json:"analysis"`
	Curriculum  Curriculum  `json:"curriculum"`
	CreatedAt   time.Time   `json:"createdAt"`
	TraceID     string      `json:"traceId"`
}

// Record statuses for the durable learning_paths row.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)
