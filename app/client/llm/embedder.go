package llm

import (
	"context"

	"tgbridge/app/config"
	"tgbridge/app/service/runtime"

	"github.com/samber/do"
	"github.com/samber/oops"
	"github.com/sashabaranov/go-openai"
)

var _ runtime.Embedder = (*Embedder)(nil)

type Embedder struct {
	client *openai.Client
	model  string
}

func NewEmbedder(di *do.Injector) (*Embedder, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewEmbedderFromConfig(cfg.OpenAI.Embedding), nil
}

func NewEmbedderFromConfig(cfg config.ModelConfig) *Embedder {
	return &Embedder{
		client: createClient(cfg),
		model:  cfg.Model,
	}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, oops.In("llm").With("model", e.model).Wrapf(err, "create embeddings")
	}

	if len(resp.Data) == 0 {
		return nil, oops.In("llm").With("model", e.model).Errorf("no embeddings returned")
	}

	return resp.Data[0].Embedding, nil
}
