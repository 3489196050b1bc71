package httpx

import (
	"encoding/json"

	"github.com/roadmapai/backend/internal/pathgen"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type CreatePathRequest struct {
	Topic       string              `json:"topic" validate:"required,min=2,max=200"`
	Background  string              `json:"background" validate:"required,max=2000"`
	GoalLevel   string              `json:"goalLevel" validate:"required,oneof=beginner intermediate advanced"`
	Preferences pathgen.Preferences `json:"preferences"`
}

type CreatePathResponse struct {
	TraceID   string `json:"traceId"`
	Status    string `json:"status"`
	StatusURL string `json:"statusUrl"`
}

type PathResponse struct {
	ID        string          `json:"id"`
	TraceID   string          `json:"traceId"`
	Topic     string          `json:"topic"`
	GoalLevel string          `json:"goalLevel"`
	Status    string          `json:"status"`
	Content   json.RawMessage `json:"content"`
	CreatedAt string          `json:"createdAt"`
	UpdatedAt string          `json:"updatedAt"`
}

type ProgressResponse struct {
	TraceID   string          `json:"traceId"`
	Stage     string          `json:"stage"`
	Message   string          `json:"message"`
	Progress  int             `json:"progress"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
