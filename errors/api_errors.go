package errors

import "fmt"

// APIError is the JSON body of every failed API response.
type APIError struct {
	Message string `json:"error"`
	Code    string `json:"code,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes returned to API clients.
const (
	AppLoginRequired     = "APP_LOGIN_REQUIRED"
	ProviderAuthRequired = "PROVIDER_AUTH_REQUIRED"
	InvalidCredentials   = "INVALID_CREDENTIALS"
	InvalidRequest       = "INVALID_REQUEST"
	UnknownProvider      = "UNKNOWN_PROVIDER"
	ProviderUnavailable  = "PROVIDER_UNAVAILABLE"
	ServerError          = "SERVER_ERROR"
	TooManyRequests      = "TOO_MANY_REQUESTS"
)

// Common error constructors

func NewAppLoginRequired() *APIError {
	return &APIError{
		Message: "Application login required",
		Code:    AppLoginRequired,
	}
}

// NewProviderAuthRequired reports that the provider has to be (re)connected.
func NewProviderAuthRequired(provider string) *APIError {
	return &APIError{
		Message: fmt.Sprintf("%s authentication required", provider),
		Code:    ProviderAuthRequired + ":" + provider,
	}
}

func NewInvalidCredentials() *APIError {
	return &APIError{
		Message: "Invalid credentials",
		Code:    InvalidCredentials,
	}
}

func NewInvalidRequest(description string) *APIError {
	return &APIError{
		Message: description,
		Code:    InvalidRequest,
	}
}

func NewUnknownProvider(provider string) *APIError {
	return &APIError{
		Message: fmt.Sprintf("unknown provider: %s", provider),
		Code:    UnknownProvider,
	}
}

func NewProviderUnavailable(provider string) *APIError {
	return &APIError{
		Message: fmt.Sprintf("%s is temporarily unavailable", provider),
		Code:    ProviderUnavailable,
	}
}

func NewServerError(description string) *APIError {
	return &APIError{
		Message: description,
		Code:    ServerError,
	}
}

func NewTooManyRequests() *APIError {
	return &APIError{
		Message: "Too many requests, please try again later",
		Code:    TooManyRequests,
	}
}
