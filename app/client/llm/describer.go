package llm

import (
	"context"
	"encoding/json"
	"strings"

	"tgbridge/app/config"
	"tgbridge/app/service/runtime"

	"github.com/samber/do"
	"github.com/samber/oops"
	"github.com/sashabaranov/go-openai"
)

const describePrompt = `Describe the image. Answer with a JSON object and nothing else:
{"title": "<a short title>", "description": "<one or two sentences about what the image shows>"}`

var _ runtime.Describer = (*Describer)(nil)

type Describer struct {
	model *chatModel
}

func NewDescriber(di *do.Injector) (*Describer, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewDescriberFromConfig(cfg.OpenAI.Vision), nil
}

func NewDescriberFromConfig(cfg config.ModelConfig) *Describer {
	return &Describer{
		model: newChatModel(cfg),
	}
}

func (d *Describer) Describe(ctx context.Context, url string) (*runtime.Description, error) {
	result, err := d.model.complete(ctx, openai.ChatCompletionRequest{
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: describePrompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    url,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, err
	}

	result = strings.Trim(result, "`")
	result = strings.TrimSpace(result)
	result = strings.TrimPrefix(result, "json")
	result = strings.TrimSpace(result)

	var desc runtime.Description
	if err = json.Unmarshal([]byte(result), &desc); err != nil {
		return nil, oops.In("llm").With("output", result).Wrapf(err, "failed to unmarshal description")
	}

	return &desc, nil
}
