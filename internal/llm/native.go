package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// nativeProvider calls a vendor's native completion endpoint with a
// single-string-prompt request shape, mirroring the original
// `LLMClient` (dashscope `Generation.call`) wrapped behind this
// package's Provider interface. The concrete wire shape below targets a
// generic "prompt in, text out" native endpoint; swapping vendors means
// swapping the request/response struct shapes, not the calling contract.
type nativeProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

func newNative(cfg Config) *nativeProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &nativeProvider{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}
}

type nativeRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type nativeResponse struct {
	Output struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (p *nativeProvider) Call(ctx context.Context, prompt string, input any) (string, error) {
	if p.apiKey == "" {
		return "", &AuthError{Detail: "no API key configured"}
	}
	fullPrompt, err := serializeInput(prompt, input)
	if err != nil {
		return "", &ValidationError{Detail: err.Error()}
	}

	body, err := json.Marshal(nativeRequest{Model: p.model, Prompt: fullPrompt, Stream: false})
	if err != nil {
		return "", &ValidationError{Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/generation", strings.NewReader(string(body)))
	if err != nil {
		return "", &ValidationError{Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Detail: err.Error()}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", &AuthError{Detail: string(raw)}
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return "", &TransportError{Detail: string(raw), Status: resp.StatusCode}
	}
	if resp.StatusCode >= 400 {
		return "", &ValidationError{Detail: fmt.Sprintf("status %d: %s", resp.StatusCode, string(raw))}
	}

	var out nativeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &TransportError{Detail: "malformed response body: " + err.Error()}
	}
	return out.Output.Text, nil
}
