package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/upb/llm-router/services/providers"
)

const (
	providerName   = "ollama"
	defaultBaseURL = "http://127.0.0.1:11434"
)

// OllamaAdapter implements providers.Generator against the Ollama
// /api/generate endpoint
type OllamaAdapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
}

// NewOllamaAdapter creates a new Ollama adapter
func NewOllamaAdapter(config providers.ProviderConfig) *OllamaAdapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}

	return &OllamaAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider name
func (a *OllamaAdapter) Name() string {
	return providerName
}

// Generate performs one non-streaming generation
func (a *OllamaAdapter) Generate(ctx context.Context, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	if req.Stream {
		return nil, providers.NewProviderError(a.Name(), providers.CodeRequestError, "streaming requested", 0, false, providers.ErrStreamingUnsupported)
	}

	startTime := time.Now()

	body, err := json.Marshal(generateRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: req.Options.Temperature,
			NumPredict:  req.Options.NumPredict,
		},
	})
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeMarshalError, "failed to marshal request", 0, false, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeRequestError, "failed to create request", 0, false, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err) {
			return nil, providers.NewProviderError(a.Name(), providers.CodeTimeout, "request timed out", 0, true, err)
		}
		return nil, providers.NewProviderError(a.Name(), providers.CodeHTTPError, "HTTP request failed", 0, true, err)
	}
	defer httpResp.Body.Close()

	respBody, err := providers.ReadBody(httpResp.Body)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeReadError, "failed to read response", httpResp.StatusCode, false, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, a.handleErrorResponse(httpResp.StatusCode, respBody)
	}

	var genResp generateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeDecodeError, "failed to decode response", httpResp.StatusCode, false, err)
	}
	if strings.TrimSpace(genResp.Response) == "" {
		return nil, providers.NewProviderError(a.Name(), providers.CodeEmptyOutput, "empty generation", httpResp.StatusCode, false, nil)
	}

	return &providers.GenerateResponse{
		Text:    genResp.Response,
		Model:   genResp.Model,
		Latency: time.Since(startTime),
	}, nil
}

// Ping checks that the Ollama server answers
func (a *OllamaAdapter) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return err
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status from ollama: %s", resp.Status)
	}
	return nil
}

// handleErrorResponse handles Ollama error responses ({"error": "..."})
func (a *OllamaAdapter) handleErrorResponse(statusCode int, body []byte) error {
	var errResp errorResponse
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		message = errResp.Error
	}

	retryable := statusCode >= 500 || statusCode == http.StatusTooManyRequests

	return providers.NewProviderError(
		a.Name(),
		providers.CodeBadStatus,
		message,
		statusCode,
		retryable,
		nil,
	)
}

func isClientTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// Ollama-specific request/response types

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type errorResponse struct {
	Error string `json:"error"`
}
