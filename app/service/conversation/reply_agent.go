package conversation

import (
	"context"
	"encoding/json"
	"strings"

	"tgbridge/app/service/runtime"
	"tgbridge/app/util/compose"

	_ "embed"

	"github.com/samber/oops"
)

//go:embed reply_prompt_template.txt
var replyPromptTemplate string

var replyFormatters = map[string]compose.Formatter{
	"lines": func(value any) string {
		if items, ok := value.([]string); ok {
			return strings.Join(items, "\n")
		}
		return compose.Stringify(value)
	},
}

// ReplyAgent writes the agent's answer from the composed state.
type ReplyAgent struct {
	generator runtime.Generator
	defaults  map[string]any
}

func NewReplyAgent(generator runtime.Generator, agentName string) *ReplyAgent {
	return &ReplyAgent{
		generator: generator,
		defaults: map[string]any{
			"agentName":        agentName,
			"bio":              "",
			"style":            "",
			"chatTitle":        "",
			"relevantMemories": "",
			"recentMessages":   "",
		},
	}
}

func (a *ReplyAgent) Call(ctx context.Context, state runtime.State) (runtime.Content, error) {
	prompt := compose.Compose(replyPromptTemplate, state, a.defaults, replyFormatters)

	ctx, cancel := context.WithTimeout(ctx, maxReasonDuration)
	defer cancel()

	result, err := a.generator.Generate(ctx, runtime.GenerateRequest{
		Prompt: prompt,
		Class:  runtime.ModelLarge,
	})
	if err != nil {
		return runtime.Content{}, oops.In("conversation").Wrapf(err, "generate reply")
	}

	return parseReply(result), nil
}

type replyPayload struct {
	Text   string `json:"text"`
	Action string `json:"action"`
}

// parseReply accepts the JSON answer the prompt asks for, optionally
// wrapped in a code fence, and falls back to the raw text.
func parseReply(raw string) runtime.Content {
	result := strings.TrimSpace(raw)
	result = strings.Trim(result, "`")
	result = strings.TrimSpace(result)
	result = strings.TrimPrefix(result, "json")
	result = strings.TrimSpace(result)

	var payload replyPayload
	if strings.HasPrefix(result, "{") && json.Unmarshal([]byte(result), &payload) == nil {
		action := strings.ToUpper(strings.TrimSpace(payload.Action))
		if action == "" {
			action = runtime.ActionNone
		}

		return runtime.Content{
			Text:   strings.TrimSpace(payload.Text),
			Action: action,
		}
	}

	return runtime.Content{
		Text:   strings.TrimSpace(raw),
		Action: runtime.ActionNone,
	}
}
