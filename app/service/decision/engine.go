package decision

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"tgbridge/app/config"
	"tgbridge/app/model"
	"tgbridge/app/service/interest"
	"tgbridge/app/service/runtime"
	"tgbridge/app/util/compose"
	"tgbridge/app/util/textutil"

	_ "embed"

	"github.com/samber/do"
)

//go:embed decision_prompt_template.txt
var decisionPromptTemplate string

const maxReasonDuration = 30 * time.Second

type Decision string

const (
	Respond Decision = "RESPOND"
	Ignore  Decision = "IGNORE"
	// Stop only appears in the prompt vocabulary, Decide never returns it.
	Stop Decision = "STOP"
)

// Engine decides whether the agent answers an inbound message.
type Engine struct {
	identity  model.Identity
	generator runtime.Generator
	threshold float64
	mention   *regexp.Regexp
}

func New(di *do.Injector) (*Engine, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewEngine(
		do.MustInvoke[model.Identity](di),
		do.MustInvoke[runtime.Generator](di),
		cfg.Interest.SimilarityThreshold,
	), nil
}

func NewEngine(identity model.Identity, generator runtime.Generator, threshold float64) *Engine {
	var mention *regexp.Regexp
	if identity.Handle != "" {
		mention = regexp.MustCompile(`(?i)@` + regexp.QuoteMeta(identity.Handle) + `\b`)
	}

	return &Engine{
		identity:  identity,
		generator: generator,
		threshold: threshold,
		mention:   mention,
	}
}

// Decide applies the rules in order, the first match wins:
// direct address, private chat, conversation continuation, model judgment.
// Failures of the model never turn into Respond.
func (e *Engine) Decide(ctx context.Context, msg *model.Message, chat *interest.ChatState, state runtime.State) Decision {
	log := slog.With("chat_id", msg.ChatID, "message_id", msg.ID)

	if e.isAddressed(msg) {
		log.Debug("Agent is addressed directly")
		return Respond
	}

	if msg.IsPrivate() {
		log.Debug("Private chat")
		return Respond
	}

	if chat.HasHandler() {
		continues := e.continuesConversation(msg, chat)
		log.Debug("Conversation is handled", "handler", chat.CurrentHandler, "continues", continues)

		if continues {
			return Respond
		}
		return Ignore
	}

	if strings.TrimSpace(msg.Body()) != "" {
		return e.judge(ctx, msg, state)
	}

	return Ignore
}

func (e *Engine) isAddressed(msg *model.Message) bool {
	if e.mention != nil && (e.mention.MatchString(msg.Text) || e.mention.MatchString(msg.Caption)) {
		return true
	}

	return e.identity.UserID != "" && msg.ReplyToUserID == e.identity.UserID
}

// continuesConversation checks that the agent owns the chat and the new
// message follows up on what was said just before it.
func (e *Engine) continuesConversation(msg *model.Message, chat *interest.ChatState) bool {
	if chat.CurrentHandler != e.identity.AgentID {
		return false
	}

	body := msg.Body()
	history := chat.Messages

	if n := len(history); n > 0 && history[n-1].UserID == msg.UserID && history[n-1].Content == body {
		history = history[:n-1]
	}

	if len(history) == 0 {
		return false
	}

	last := history[len(history)-1]
	if last.UserID == e.identity.UserID {
		return true
	}

	var score float64
	if len(history) >= 2 {
		score = textutil.LexicalSimilarity(body, last.Content, history[len(history)-2].Content)
	} else {
		score = textutil.LexicalSimilarity(body, last.Content)
	}

	return score >= e.threshold
}

func (e *Engine) judge(ctx context.Context, msg *model.Message, state runtime.State) (decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Decision generation panicked", "chat_id", msg.ChatID, "panic", r)
			decision = Ignore
		}
	}()

	defaults := map[string]any{
		"agentName":      e.identity.Name,
		"bio":            "",
		"chatTitle":      msg.ChatTitle,
		"recentMessages": "",
		"senderName":     msg.UserName,
		"currentMessage": msg.Body(),
	}

	prompt := compose.Compose(decisionPromptTemplate, state, defaults, nil)

	ctx, cancel := context.WithTimeout(ctx, maxReasonDuration)
	defer cancel()

	result, err := e.generator.Generate(ctx, runtime.GenerateRequest{
		Prompt: prompt,
		Class:  runtime.ModelSmall,
	})
	if err != nil {
		slog.Warn("Decision generation failed",
			"chat_id", msg.ChatID,
			"error", err,
		)
		return Ignore
	}

	switch Decision(strings.ToUpper(strings.TrimSpace(result))) {
	case Respond:
		return Respond
	case Ignore:
		return Ignore
	default:
		slog.Warn("Unexpected decision output, ignoring message",
			"chat_id", msg.ChatID,
			"output", result,
		)
		return Ignore
	}
}
