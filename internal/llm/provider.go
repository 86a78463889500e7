// Package llm is the LLM Gateway (C3): a provider-agnostic `Call` +
// `ParseJSON` surface over two concrete variants — a native-SDK-style
// provider and a generic OpenAI-compatible HTTP provider — with a shared
// retry policy and a six-stage tolerant JSON parser. Grounded on the
// original `LLMFactory`/`LLMClient`/`SiliconFlowClient` split and on the
// teacher's `platform/openai` client's retry/error-classification idiom
// (github.com/clipforge/pipeline teacher: yungbote-neurobridge-backend).
package llm

import (
	"context"
	"time"
)

// Provider is the capability set spec §9 calls for: one surface shared
// by every backing implementation.
type Provider interface {
	// Call sends prompt (plus optional structured input, serialized with
	// a fixed header) to the model and returns raw text. An empty string
	// with a nil error means the call succeeded but produced no output;
	// callers decide whether that's fatal.
	Call(ctx context.Context, prompt string, input any) (string, error)
}

// Config configures a Provider construction. Exactly one of the
// Native/OpenAICompatible constructors consumes it.
type Config struct {
	Provider   string // "native" | "openai_compatible"
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// New builds the configured Provider variant.
func New(cfg Config) Provider {
	switch cfg.Provider {
	case "openai_compatible":
		return newOpenAICompatible(cfg)
	default:
		return newNative(cfg)
	}
}

// CallWithRetry wraps Provider.Call with spec §4.3's retry policy:
// exponential backoff of 2^attempt seconds, up to maxRetries attempts,
// no retry on AuthError/ValidationError.
func CallWithRetry(ctx context.Context, p Provider, prompt string, input any, maxRetries int) (string, error) {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		out, err := p.Call(ctx, prompt, input)
		if err == nil {
			if out == "" {
				lastErr = &EmptyResponse{}
			} else {
				return out, nil
			}
		} else {
			lastErr = err
		}

		if !isRetryable(lastErr) {
			return "", lastErr
		}
		if attempt == maxRetries-1 {
			break
		}
		wait := time.Duration(1<<uint(attempt)) * time.Second
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", lastErr
}
