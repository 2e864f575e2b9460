package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Generator is a single request/response text generation endpoint. It is
// used for prompt classification, never to serve the routed request.
type Generator interface {
	// Name returns the backend name (e.g., "ollama", "openai")
	Name() string

	// Generate performs one non-streaming generation
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error
}

// GenerateRequest is a non-streaming generation request
type GenerateRequest struct {
	// Model identifier on the backend (e.g., "qwen2.5:0.5b")
	Model string `json:"model"`

	// Prompt is the full instruction text
	Prompt string `json:"prompt"`

	// Options controls sampling
	Options GenerateOptions `json:"options"`

	// Stream is always false; generators reject streaming requests
	Stream bool `json:"stream"`
}

// GenerateOptions are sampling options
type GenerateOptions struct {
	// Temperature controls randomness
	Temperature float64 `json:"temperature"`

	// NumPredict limits the number of generated tokens
	NumPredict int `json:"num_predict,omitempty"`
}

// GenerateResponse is the free-text generation result
type GenerateResponse struct {
	// Text is the raw generated text
	Text string `json:"text"`

	// Model that produced the text
	Model string `json:"model"`

	// Latency of the request
	Latency time.Duration `json:"latency"`
}

// ProviderConfig holds common configuration for generators
type ProviderConfig struct {
	// APIKey for authentication
	APIKey string

	// BaseURL for the API
	BaseURL string

	// Timeout for requests
	Timeout time.Duration

	// Additional headers
	Headers map[string]string
}

// DefaultProviderConfig returns a sensible default configuration
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Timeout: 5 * time.Second,
		Headers: make(map[string]string),
	}
}

// ErrStreamingUnsupported is returned for requests with Stream set
var ErrStreamingUnsupported = errors.New("streaming generation is not supported")

// MaxResponseBytes caps how much of a backend response body is read
const MaxResponseBytes = 1 << 20

// ErrResponseTooLarge is returned when a response body exceeds MaxResponseBytes
var ErrResponseTooLarge = fmt.Errorf("response body exceeds %d bytes", MaxResponseBytes)

// ReadBody reads at most MaxResponseBytes from r
func ReadBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > MaxResponseBytes {
		return nil, ErrResponseTooLarge
	}
	return body, nil
}

// ProviderError represents an error from a generator backend
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is the error code
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Retryable indicates if the request can be retried
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Provider + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Provider + ": " + e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}

// IsTimeout reports whether err is a deadline expiry
func IsTimeout(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) && provErr.Code == CodeTimeout {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Error codes shared by generator backends
const (
	CodeTimeout      = "TIMEOUT"
	CodeHTTPError    = "HTTP_ERROR"
	CodeReadError    = "READ_ERROR"
	CodeDecodeError  = "DECODE_ERROR"
	CodeMarshalError = "MARSHAL_ERROR"
	CodeRequestError = "REQUEST_ERROR"
	CodeBadStatus    = "BAD_STATUS"
	CodeEmptyOutput  = "EMPTY_OUTPUT"
)
