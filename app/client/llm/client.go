// Package llm talks to OpenAI compatible APIs for text generation,
// embeddings and image descriptions.
package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"tgbridge/app/config"

	"github.com/samber/oops"
	"github.com/sashabaranov/go-openai"
)

const requestTimeout = 60 * time.Second

func createClient(cfg config.ModelConfig) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.Token)

	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: requestTimeout,
	}

	return openai.NewClientWithConfig(clientConfig)
}

type chatModel struct {
	client *openai.Client
	cfg    config.ModelConfig
}

func newChatModel(cfg config.ModelConfig) *chatModel {
	return &chatModel{
		client: createClient(cfg),
		cfg:    cfg,
	}
}

func (m *chatModel) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	req.Model = m.cfg.Model
	req.Temperature = m.cfg.Temperature
	if m.cfg.MaxTokens > 0 {
		req.MaxCompletionTokens = m.cfg.MaxTokens
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", oops.In("llm").With("model", m.cfg.Model).Wrapf(err, "create chat completion")
	}

	if len(resp.Choices) == 0 {
		return "", oops.In("llm").With("model", m.cfg.Model).Errorf("no chat completion choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
