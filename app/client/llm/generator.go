package llm

import (
	"context"
	"log/slog"
	"time"

	"tgbridge/app/config"
	"tgbridge/app/service/runtime"

	"github.com/samber/do"
	"github.com/sashabaranov/go-openai"
)

var _ runtime.Generator = (*Generator)(nil)

// Generator serves small requests with the decision model and large ones
// with the reply model.
type Generator struct {
	small *chatModel
	large *chatModel
}

func NewGenerator(di *do.Injector) (*Generator, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewGeneratorFromConfig(cfg.OpenAI.Decision, cfg.OpenAI.Reply), nil
}

func NewGeneratorFromConfig(small, large config.ModelConfig) *Generator {
	return &Generator{
		small: newChatModel(small),
		large: newChatModel(large),
	}
}

func (g *Generator) Generate(ctx context.Context, req runtime.GenerateRequest) (string, error) {
	model := g.large
	if req.Class == runtime.ModelSmall {
		model = g.small
	}

	start := time.Now()

	result, err := model.complete(ctx, openai.ChatCompletionRequest{
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.Prompt,
			},
		},
	})
	if err != nil {
		return "", err
	}

	slog.Debug("Generated text",
		"model", model.cfg.Model,
		"class", req.Class,
		"duration", time.Since(start),
	)

	return result, nil
}
