package langchain

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

var _ callbacks.Handler = (*LogCallbackHandler)(nil)

// LogCallbackHandler reports LLM calls to slog.
type LogCallbackHandler struct{}

func (l LogCallbackHandler) HandleText(context.Context, string) {}

func (l LogCallbackHandler) HandleLLMStart(ctx context.Context, prompts []string) {
	slog.DebugContext(ctx, "LLM start", "prompts", len(prompts))
}

func (l LogCallbackHandler) HandleLLMGenerateContentStart(ctx context.Context, ms []llms.MessageContent) {
	slog.DebugContext(ctx, "LLM generate content start", "messages", len(ms))
}

func (l LogCallbackHandler) HandleLLMGenerateContentEnd(ctx context.Context, res *llms.ContentResponse) {
	if res == nil {
		return
	}
	slog.DebugContext(ctx, "LLM generate content end", "choices", len(res.Choices))
}

func (l LogCallbackHandler) HandleLLMError(ctx context.Context, err error) {
	slog.WarnContext(ctx, "LLM error", "error", err)
}

func (l LogCallbackHandler) HandleChainStart(context.Context, map[string]any) {}

func (l LogCallbackHandler) HandleChainEnd(context.Context, map[string]any) {}

func (l LogCallbackHandler) HandleChainError(ctx context.Context, err error) {
	slog.WarnContext(ctx, "Chain error", "error", err)
}

func (l LogCallbackHandler) HandleToolStart(context.Context, string) {}

func (l LogCallbackHandler) HandleToolEnd(context.Context, string) {}

func (l LogCallbackHandler) HandleToolError(ctx context.Context, err error) {
	slog.WarnContext(ctx, "Tool error", "error", err)
}

func (l LogCallbackHandler) HandleAgentAction(context.Context, schema.AgentAction) {}

func (l LogCallbackHandler) HandleAgentFinish(context.Context, schema.AgentFinish) {}

func (l LogCallbackHandler) HandleRetrieverStart(context.Context, string) {}

func (l LogCallbackHandler) HandleRetrieverEnd(context.Context, string, []schema.Document) {}

func (l LogCallbackHandler) HandleStreamingFunc(context.Context, []byte) {}
