package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ai776/daily-picks/internal/asset"
	"github.com/ai776/daily-picks/internal/config"
	"github.com/ai776/daily-picks/internal/logger"
)

// OpenAIBackend talks to any OpenAI-compatible endpoint (OpenAI, DeepSeek,
// local gateways). It has no web search; Search requests are answered from
// the model's own knowledge.
type OpenAIBackend struct {
	client     *openai.Client
	model      string
	imageModel string
	timeout    time.Duration
	logger     *logger.Logger
}

func NewOpenAIBackend(cfg *config.Config, log *logger.Logger) *OpenAIBackend {
	ocfg := openai.DefaultConfig(cfg.OpenAI.APIKey)
	ocfg.BaseURL = cfg.OpenAI.BaseURL

	return &OpenAIBackend{
		client:     openai.NewClientWithConfig(ocfg),
		model:      cfg.OpenAI.Model,
		imageModel: cfg.OpenAI.ImageModel,
		timeout:    cfg.AITimeout(),
		logger:     log,
	}
}

func (o *OpenAIBackend) Name() string { return "openai:" + o.model }

func (o *OpenAIBackend) Generate(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt}
	if req.Attachment != nil {
		dataURI := fmt.Sprintf("data:%s;base64,%s", req.Attachment.MIMEType,
			base64.StdEncoding.EncodeToString(req.Attachment.Data))
		user.Content = ""
		user.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURI}},
		}
	}
	messages = append(messages, user)

	creq := openai.ChatCompletionRequest{Model: o.model, Messages: messages}
	if req.JSON {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	o.logger.Debug("sending completion request", "model", o.model, "attachment", req.Attachment != nil)

	resp, err := o.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, fmt.Errorf("openai API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	o.logger.Debug("received completion", "length", len(raw))
	return &Response{Text: raw}, nil
}

func (o *OpenAIBackend) GenerateImage(ctx context.Context, prompt string) (*asset.Icon, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          o.imageModel,
		N:              1,
		Size:           openai.CreateImageSize256x256,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai image call: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("openai returned no image")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return &asset.Icon{MIMEType: "image/png", Data: data}, nil
}

func (o *OpenAIBackend) StreamChat(ctx context.Context, req *ChatRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()

		messages := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: req.System}}
		for _, t := range req.History {
			role := openai.ChatMessageRoleUser
			if t.Role == RoleAssistant {
				role = openai.ChatMessageRoleAssistant
			}
			messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.Text})
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Message})

		stream, err := o.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:    o.model,
			Messages: messages,
			Stream:   true,
		})
		if err != nil {
			yield("", fmt.Errorf("openai stream: %w", err))
			return
		}
		defer stream.Close()

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("openai stream recv: %w", err))
				return
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			if !yield(chunk.Choices[0].Delta.Content, nil) {
				return
			}
		}
	}
}
