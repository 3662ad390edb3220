package langchain

import (
	"context"
	"strings"

	"tgbridge/app/config"
	"tgbridge/app/service/runtime"

	"github.com/samber/do"
	"github.com/samber/oops"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

var _ runtime.Generator = (*Generator)(nil)

type model struct {
	llm *openai.LLM
	cfg config.ModelConfig
}

// Generator runs prompts through langchaingo against OpenAI compatible
// endpoints.
type Generator struct {
	small model
	large model
}

func New(di *do.Injector) (*Generator, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewGenerator(cfg.OpenAI.Decision, cfg.OpenAI.Reply)
}

func NewGenerator(small, large config.ModelConfig) (*Generator, error) {
	smallLLM, err := newLLM(small)
	if err != nil {
		return nil, err
	}

	largeLLM, err := newLLM(large)
	if err != nil {
		return nil, err
	}

	return &Generator{
		small: model{llm: smallLLM, cfg: small},
		large: model{llm: largeLLM, cfg: large},
	}, nil
}

func newLLM(cfg config.ModelConfig) (*openai.LLM, error) {
	llm, err := openai.New(
		openai.WithToken(cfg.Token),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithCallback(LogCallbackHandler{}),
	)
	if err != nil {
		return nil, oops.In("langchain").With("model", cfg.Model).Wrapf(err, "create llm")
	}

	return llm, nil
}

func (g *Generator) Generate(ctx context.Context, req runtime.GenerateRequest) (string, error) {
	m := g.large
	if req.Class == runtime.ModelSmall {
		m = g.small
	}

	opts := []llms.CallOption{
		llms.WithTemperature(float64(m.cfg.Temperature)),
	}
	if m.cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(m.cfg.MaxTokens))
	}

	result, err := llms.GenerateFromSinglePrompt(ctx, m.llm, req.Prompt, opts...)
	if err != nil {
		return "", oops.In("langchain").With("model", m.cfg.Model, "class", req.Class).Wrapf(err, "generate")
	}

	return strings.TrimSpace(result), nil
}
