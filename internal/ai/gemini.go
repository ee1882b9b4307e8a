package ai

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/ai776/daily-picks/internal/asset"
	"github.com/ai776/daily-picks/internal/config"
	"github.com/ai776/daily-picks/internal/logger"
)

// GeminiBackend uses the Gemini API. Search requests are grounded with the
// Google Search tool and return the grounding chunks as sources.
type GeminiBackend struct {
	client     *genai.Client
	model      string
	imageModel string
	timeout    time.Duration
	logger     *logger.Logger
}

func NewGeminiBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (*GeminiBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiBackend{
		client:     client,
		model:      cfg.Gemini.Model,
		imageModel: cfg.Gemini.ImageModel,
		timeout:    cfg.AITimeout(),
		logger:     log,
	}, nil
}

func (g *GeminiBackend) Name() string { return "gemini:" + g.model }

func (g *GeminiBackend) Generate(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if req.Attachment != nil {
		parts = append(parts, genai.NewPartFromBytes(req.Attachment.Data, req.Attachment.MIMEType))
	}

	gcfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		gcfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	// Tools and a JSON response MIME type cannot be combined; grounded
	// requests rely on CleanJSON instead.
	switch {
	case req.Search:
		gcfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	case req.JSON:
		gcfg.ResponseMIMEType = "application/json"
	}

	g.logger.Debug("sending generate request", "model", g.model, "search", req.Search, "attachment", req.Attachment != nil)

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, gcfg)
	if err != nil {
		return nil, fmt.Errorf("gemini API call: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	out := &Response{Text: resp.Text(), Sources: groundingSources(resp)}
	g.logger.Debug("received generate response", "length", len(out.Text), "sources", len(out.Sources))
	return out, nil
}

func groundingSources(resp *genai.GenerateContentResponse) []Source {
	gm := resp.Candidates[0].GroundingMetadata
	if gm == nil {
		return nil
	}
	var sources []Source
	for _, chunk := range gm.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		label := chunk.Web.Title
		if label == "" {
			label = chunk.Web.Domain
		}
		sources = append(sources, Source{URL: chunk.Web.URI, Label: label})
	}
	return sources
}

func (g *GeminiBackend) GenerateImage(ctx context.Context, prompt string) (*asset.Icon, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if strings.HasPrefix(g.imageModel, "imagen-") {
		resp, err := g.client.Models.GenerateImages(ctx, g.imageModel, prompt, &genai.GenerateImagesConfig{
			NumberOfImages: 1,
			OutputMIMEType: "image/png",
		})
		if err != nil {
			return nil, fmt.Errorf("gemini image call: %w", err)
		}
		if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
			return nil, fmt.Errorf("gemini returned no image")
		}
		img := resp.GeneratedImages[0].Image
		return &asset.Icon{MIMEType: img.MIMEType, Data: img.ImageBytes}, nil
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.imageModel,
		genai.Text(prompt), &genai.GenerateContentConfig{ResponseModalities: []string{"TEXT", "IMAGE"}})
	if err != nil {
		return nil, fmt.Errorf("gemini image call: %w", err)
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return &asset.Icon{MIMEType: part.InlineData.MIMEType, Data: part.InlineData.Data}, nil
			}
		}
	}
	return nil, fmt.Errorf("gemini returned no image")
}

func (g *GeminiBackend) StreamChat(ctx context.Context, req *ChatRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		contents := make([]*genai.Content, 0, len(req.History)+1)
		for _, t := range req.History {
			role := genai.Role(genai.RoleUser)
			if t.Role == RoleAssistant {
				role = genai.RoleModel
			}
			contents = append(contents, genai.NewContentFromText(t.Text, role))
		}
		contents = append(contents, genai.NewContentFromText(req.Message, genai.RoleUser))

		gcfg := &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		}
		for chunk, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, gcfg) {
			if err != nil {
				yield("", fmt.Errorf("gemini stream: %w", err))
				return
			}
			if chunk == nil {
				continue
			}
			if text := chunk.Text(); text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
	}
}
