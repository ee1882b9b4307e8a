package ai

import (
	"context"
	"fmt"
	"iter"

	"github.com/ai776/daily-picks/internal/asset"
	"github.com/ai776/daily-picks/internal/config"
	"github.com/ai776/daily-picks/internal/logger"
)

// Backend is a hosted generative model. Implementations return raw model
// output; all parsing and fallback lives in Gateway.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req *Request) (*Response, error)
	GenerateImage(ctx context.Context, prompt string) (*asset.Icon, error)
	StreamChat(ctx context.Context, req *ChatRequest) iter.Seq2[string, error]
}

type Request struct {
	System     string
	Prompt     string
	Attachment *Attachment
	// JSON asks for a bare JSON object. Not combinable with Search on Gemini.
	JSON bool
	// Search grounds the answer on web results when the backend supports it.
	Search bool
}

type Attachment struct {
	Data     []byte
	MIMEType string
}

type Response struct {
	Text    string
	Sources []Source
}

type ChatRequest struct {
	System  string
	History []Turn
	Message string
}

// NewBackend builds the backend selected by ai.provider.
func NewBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (Backend, error) {
	switch cfg.AI.Provider {
	case config.ProviderGemini:
		b, err := NewGeminiBackend(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.ProviderOpenAI:
		return NewOpenAIBackend(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.AI.Provider)
	}
}
