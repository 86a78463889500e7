package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// openAICompatProvider speaks the generic OpenAI chat-completions wire
// shape, mirroring the original `SiliconFlowClient` (any OpenAI-compatible
// vendor behind the same endpoint contract) and the retryable/
// non-retryable status classification in the teacher's
// `platform/openai` client (`doWithClient`, `openAIHTTPError`).
type openAICompatProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

func newOpenAICompatible(cfg Config) *openAICompatProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &openAICompatProvider{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *openAICompatProvider) Call(ctx context.Context, prompt string, input any) (string, error) {
	if p.apiKey == "" {
		return "", &AuthError{Detail: "no API key configured"}
	}
	fullPrompt, err := serializeInput(prompt, input)
	if err != nil {
		return "", &ValidationError{Detail: err.Error()}
	}

	reqBody := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "user", Content: fullPrompt},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", &ValidationError{Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
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

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &TransportError{Detail: "malformed response body: " + err.Error()}
	}
	if out.Error != nil {
		return "", &ValidationError{Detail: out.Error.Message}
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}
