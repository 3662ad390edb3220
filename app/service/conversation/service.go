package conversation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tgbridge/app/config"
	"tgbridge/app/model"
	"tgbridge/app/service/decision"
	"tgbridge/app/service/interest"
	"tgbridge/app/service/runtime"
	"tgbridge/app/util/mylog"
	"tgbridge/app/util/textutil"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

const (
	maxReasonDuration = 60 * time.Second
	memorySource      = "telegram"
)

// Transport delivers messages to chats.
type Transport interface {
	// Send posts text to the chat, replying to replyTo when it is not empty,
	// and returns the id of the sent message.
	Send(ctx context.Context, chatID, text, replyTo string) (string, error)
	SendTyping(ctx context.Context, chatID string) error
	FileURL(ctx context.Context, fileID string) (string, error)
	Leave(ctx context.Context, chatID string) error
}

type Agent interface {
	RegisterAction(name string, handler runtime.ActionHandler)
	CreateMemory(ctx context.Context, m *runtime.Memory, unique bool) error
	ComposeState(ctx context.Context, message *runtime.Memory, extra runtime.State) (runtime.State, error)
	UpdateRecentMessageState(ctx context.Context, state runtime.State) (runtime.State, error)
	ProcessActions(ctx context.Context, message *runtime.Memory, responses []*runtime.Memory, state runtime.State) error
	Evaluate(ctx context.Context, message *runtime.Memory, state runtime.State) error
}

type Decider interface {
	Decide(ctx context.Context, msg *model.Message, chat *interest.ChatState, state runtime.State) decision.Decision
}

type Options struct {
	Config    config.Telegram
	Identity  model.Identity
	Transport Transport
	Agent     Agent
	Decider   Decider
	Generator runtime.Generator
	// Describer is optional, images are skipped without it
	Describer runtime.Describer
	Tracker   *interest.Tracker
}

// Service turns inbound chat messages into agent memories and replies.
type Service struct {
	cfg       config.Telegram
	identity  model.Identity
	transport Transport
	agent     Agent
	decider   Decider
	describer runtime.Describer
	tracker   *interest.Tracker

	replyAgent *ReplyAgent

	mu      sync.Mutex
	revoked map[string]struct{}
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	// optional, only provided when a vision model is configured
	describer, _ := do.Invoke[runtime.Describer](di)

	return NewService(Options{
		Config:    cfg.Telegram,
		Identity:  do.MustInvoke[model.Identity](di),
		Transport: do.MustInvoke[Transport](di),
		Agent:     do.MustInvoke[*runtime.Runtime](di),
		Decider:   do.MustInvoke[*decision.Engine](di),
		Generator: do.MustInvoke[runtime.Generator](di),
		Describer: describer,
		Tracker:   do.MustInvoke[*interest.Tracker](di),
	}), nil
}

func NewService(opts Options) *Service {
	s := &Service{
		cfg:        opts.Config,
		identity:   opts.Identity,
		transport:  opts.Transport,
		agent:      opts.Agent,
		decider:    opts.Decider,
		describer:  opts.Describer,
		tracker:    opts.Tracker,
		replyAgent: NewReplyAgent(opts.Generator, opts.Identity.Name),
		revoked:    make(map[string]struct{}),
	}

	s.agent.RegisterAction(runtime.ActionIgnore, func(_ context.Context, message *runtime.Memory, _ []*runtime.Memory, _ runtime.State) error {
		s.tracker.ReleaseHandler(message.ChatID)
		slog.Debug("Left conversation", "chat_id", message.ChatID)
		return nil
	})

	return s
}

// Intake runs the synchronous part of handling msg: access checks, filters
// and history tracking. It returns the remaining work, or nil when the
// message is dropped. Intake must be called in arrival order.
func (s *Service) Intake(msg *model.Message) func(context.Context) {
	if s.IsRevoked(msg.ChatID) {
		return nil
	}

	if !s.isAllowed(msg.ChatID) {
		if !s.markRevoked(msg.ChatID) {
			return nil
		}

		return func(ctx context.Context) {
			s.farewell(ctx, msg)
		}
	}

	if s.cfg.IgnoreBots && msg.IsBot {
		return nil
	}

	if s.cfg.IgnoreDirectMessages && msg.IsPrivate() {
		return nil
	}

	if !hasText(msg) && !s.canDescribe(msg) {
		return nil
	}

	chat := s.tracker.Track(msg.ChatID, interest.MessageRecord{
		UserID:    msg.UserID,
		UserName:  msg.UserName,
		Content:   msg.Body(),
		Timestamp: msg.Date,
	})

	return func(ctx context.Context) {
		s.Process(ctx, msg, chat)
	}
}

func (s *Service) canDescribe(msg *model.Message) bool {
	return s.describer != nil && msg.HasImages()
}

// Handle runs Intake and the returned work in the calling goroutine.
func (s *Service) Handle(ctx context.Context, msg *model.Message) {
	if task := s.Intake(msg); task != nil {
		task(ctx)
	}
}

// Process handles an accepted message. chat is the state captured when the
// message was tracked, later messages of the chat are not part of it.
// Process never fails: errors are logged and the chat is notified when
// possible.
func (s *Service) Process(ctx context.Context, msg *model.Message, chat interest.ChatState) {
	log := slog.With("chat_id", msg.ChatID, "message_id", msg.ID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic while processing message", "panic", r)
		}
	}()

	start := time.Now()

	err := s.process(ctx, msg, &chat)
	if err == nil {
		log.Debug("Processed message", "duration", time.Since(start))
		return
	}

	if errors.Is(err, model.ErrChatForbidden) {
		s.Revoke(msg.ChatID)
		return
	}

	if ctx.Err() != nil {
		log.Debug("Processing cancelled", "error", err)
		return
	}

	log.Error("Failed to process message", "error", err)

	if _, sendErr := s.transport.Send(ctx, msg.ChatID, s.cfg.ErrorMessage, msg.ID); sendErr != nil {
		log.Warn("Failed to send error notice", "error", sendErr)
	}
}

func (s *Service) process(ctx context.Context, msg *model.Message, chat *interest.ChatState) error {
	agentID := s.identity.AgentID
	errorBuilder := oops.In("conversation").With("chat_id", msg.ChatID, "message_id", msg.ID)

	notes := s.describeAttachments(ctx, msg)

	memory := &runtime.Memory{
		ID:       s.messageID(msg.ChatID, msg.ID),
		ChatID:   msg.ChatID,
		UserID:   textutil.StableID(msg.UserID),
		UserName: msg.UserName,
		AgentID:  agentID,
		RoomID:   s.roomID(msg.ChatID),
		Content: runtime.Content{
			Text:   messageText(msg, notes),
			Source: memorySource,
		},
		CreatedAt: msg.Date,
	}
	if msg.ReplyToID != "" {
		memory.Content.InReplyTo = s.messageID(msg.ChatID, msg.ReplyToID)
	}

	if err := s.agent.CreateMemory(ctx, memory, false); err != nil {
		return errorBuilder.Wrapf(err, "store message")
	}

	state, err := s.agent.ComposeState(ctx, memory, runtime.State{
		"senderName": msg.UserName,
		"chatTitle":  msg.ChatTitle,
	})
	if err != nil {
		return errorBuilder.Wrapf(err, "compose state")
	}

	state, err = s.agent.UpdateRecentMessageState(ctx, state)
	if err != nil {
		return errorBuilder.Wrapf(err, "update state")
	}

	if s.decider.Decide(ctx, msg, chat, state) != decision.Respond {
		slog.Debug("Not responding", "chat_id", msg.ChatID, "message_id", msg.ID)
		return nil
	}

	return s.respond(ctx, msg, memory, state)
}

func (s *Service) respond(ctx context.Context, msg *model.Message, memory *runtime.Memory, state runtime.State) error {
	errorBuilder := oops.In("conversation").With("chat_id", msg.ChatID, "message_id", msg.ID)

	if err := s.transport.SendTyping(ctx, msg.ChatID); err != nil {
		if errors.Is(err, model.ErrChatForbidden) {
			return err
		}
		slog.Warn("Failed to send typing indicator", "chat_id", msg.ChatID, "error", err)
	}

	content, err := s.replyAgent.Call(ctx, state)
	if err != nil {
		return errorBuilder.Wrapf(err, "generate reply")
	}

	if content.Text == "" {
		slog.Debug("Empty reply", "chat_id", msg.ChatID, "message_id", msg.ID)
		return nil
	}

	responses, err := s.sendReply(ctx, msg, content)
	if err != nil {
		return errorBuilder.Wrapf(err, "send reply")
	}

	// the agent owns the conversation only once it has said something
	s.tracker.SetHandler(msg.ChatID, s.identity.AgentID)

	slog.Info("Replied to message",
		"chat_id", msg.ChatID,
		"message_id", msg.ID,
		"chunks", len(responses),
		"action", content.Action,
	)

	state, err = s.agent.UpdateRecentMessageState(ctx, state)
	if err != nil {
		return errorBuilder.Wrapf(err, "update state")
	}

	if err = s.agent.ProcessActions(ctx, memory, responses, state); err != nil {
		return errorBuilder.Wrapf(err, "process actions")
	}

	if err = s.agent.Evaluate(ctx, memory, state); err != nil {
		return errorBuilder.Wrapf(err, "evaluate")
	}

	return nil
}

// sendReply sends content in order, one chunk at a time. Only the first chunk
// replies to msg; every sent chunk is stored and tracked.
func (s *Service) sendReply(ctx context.Context, msg *model.Message, content runtime.Content) ([]*runtime.Memory, error) {
	agentID := s.identity.AgentID
	chunks := textutil.Chunk(content.Text, textutil.DefaultChunkSize)
	responses := make([]*runtime.Memory, 0, len(chunks))

	replyTo := msg.ID
	for i, chunk := range chunks {
		sentID, err := s.transport.Send(ctx, msg.ChatID, chunk, replyTo)
		if err != nil {
			return responses, oops.With("chunk", i).Wrapf(err, "send chunk")
		}

		action := runtime.ActionContinue
		if i == len(chunks)-1 {
			action = content.Action
		}

		inReplyTo := ""
		if replyTo != "" {
			inReplyTo = s.messageID(msg.ChatID, replyTo)
		}

		response := &runtime.Memory{
			ID:       s.messageID(msg.ChatID, sentID),
			ChatID:   msg.ChatID,
			UserID:   agentID,
			UserName: s.identity.Name,
			AgentID:  agentID,
			RoomID:   s.roomID(msg.ChatID),
			Content: runtime.Content{
				Text:      chunk,
				Source:    memorySource,
				InReplyTo: inReplyTo,
				Action:    action,
			},
			CreatedAt: time.Now(),
		}
		if err = s.agent.CreateMemory(ctx, response, false); err != nil {
			slog.Warn("Failed to store reply", "chat_id", msg.ChatID, "sent_id", sentID, "error", err)
		}

		s.tracker.Track(msg.ChatID, interest.MessageRecord{
			UserID:   s.identity.UserID,
			UserName: s.identity.Name,
			Content:  chunk,
		})

		responses = append(responses, response)
		replyTo = ""
	}

	return responses, nil
}

func (s *Service) describeAttachments(ctx context.Context, msg *model.Message) []string {
	if s.describer == nil {
		return nil
	}

	images := pie.Filter(msg.Attachments, func(a model.Attachment) bool {
		return a.IsImage()
	})

	notes := make([]string, 0, len(images))
	for _, attachment := range images {
		url := attachment.URL
		if url == "" {
			var err error
			if url, err = s.transport.FileURL(ctx, attachment.FileID); err != nil {
				slog.Warn("Failed to resolve attachment", "chat_id", msg.ChatID, "file_id", attachment.FileID, "error", err)
				continue
			}
		}

		desc, err := s.describer.Describe(ctx, url)
		if err != nil {
			slog.Warn("Failed to describe image", "chat_id", msg.ChatID, "file_id", attachment.FileID, "error", err)
			continue
		}

		notes = append(notes, imageNote(desc))
	}

	return notes
}

func (s *Service) farewell(ctx context.Context, msg *model.Message) {
	log := slog.With("chat_id", msg.ChatID, "chat_title", msg.ChatTitle)

	if _, err := s.transport.Send(ctx, msg.ChatID, s.cfg.FarewellMessage, ""); err != nil {
		log.Warn("Failed to send farewell", "error", err)
	}

	if err := s.transport.Leave(ctx, msg.ChatID); err != nil {
		log.Warn("Failed to leave chat", "error", err)
	}

	log.Info("Left unauthorized chat", mylog.Alert())
}

// Revoke stops all work for chatID, e.g. after the bot was removed from it.
func (s *Service) Revoke(chatID string) {
	if !s.markRevoked(chatID) {
		return
	}

	slog.Info("Chat access revoked", "chat_id", chatID, mylog.Alert())
}

func (s *Service) IsRevoked(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.revoked[chatID]
	return ok
}

// Revoked lists revoked chat ids in sorted order.
func (s *Service) Revoked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return pie.Sort(lo.Keys(s.revoked))
}

// markRevoked reports whether chatID was newly revoked.
func (s *Service) markRevoked(chatID string) bool {
	s.mu.Lock()
	_, ok := s.revoked[chatID]
	s.revoked[chatID] = struct{}{}
	s.mu.Unlock()

	if ok {
		return false
	}

	s.tracker.Forget(chatID)
	return true
}

func (s *Service) isAllowed(chatID string) bool {
	return len(s.cfg.AllowedChats) == 0 || lo.Contains(s.cfg.AllowedChats, chatID)
}

// messageID derives a memory id from a chat message id, which is only unique
// within its chat.
func (s *Service) messageID(chatID, messageID string) string {
	return textutil.StableID(chatID + "-" + messageID + "-" + s.identity.AgentID)
}

func (s *Service) roomID(chatID string) string {
	return textutil.StableID(chatID + "-" + s.identity.AgentID)
}
