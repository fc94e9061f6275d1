package api

import (
	"time"

	"go.pilab.hu/focusboard/domain"
)

// LoginRequest is the body of POST /auth/login. Username is accepted as an
// alias of Login.
type LoginRequest struct {
	Login    string `json:"login"    form:"login"`
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// LoginName returns the login, falling back to the username alias.
func (r LoginRequest) LoginName() string {
	if r.Login != "" {
		return r.Login
	}
	return r.Username
}

// SuccessResponse acknowledges a state-changing request.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Login   string `json:"login,omitempty"`
}

// SessionResponse describes the current session.
type SessionResponse struct {
	Authenticated bool              `json:"authenticated"`
	Login         string            `json:"login,omitempty"`
	Providers     []domain.Provider `json:"providers"`
}

// TokenStatusResponse reports that a usable provider token is available.
// The token itself never leaves the server.
type TokenStatusResponse struct {
	Ready bool `json:"ready"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
