package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"tgbridge/app/config"
	"tgbridge/app/model"

	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/samber/oops"
)

const (
	ActionNone     = "NONE"
	ActionContinue = "CONTINUE"
	ActionIgnore   = "IGNORE"

	relevantThreshold = 0.75
	relevantCount     = 5
)

// ActionHandler runs when a response carries the action it is registered for.
type ActionHandler func(ctx context.Context, message *Memory, responses []*Memory, state State) error

// Evaluator runs after every handled message.
type Evaluator func(ctx context.Context, message *Memory, state State) error

// State is the hierarchical value map prompts are composed from.
type State map[string]any

type Options struct {
	AgentID     string
	AgentName   string
	Bio         string
	Style       []string
	Store       MemoryStore
	Embedder    Embedder
	RecentCount int
}

type Runtime struct {
	agentID   string
	agentName string
	bio       string
	style     []string

	store       MemoryStore
	embedder    Embedder
	recentCount int

	mu         sync.RWMutex
	actions    map[string]ActionHandler
	evaluators map[string]Evaluator
	evalOrder  []string
}

func New(di *do.Injector) (*Runtime, error) {
	cfg := do.MustInvoke[*config.Config](di)
	identity := do.MustInvoke[model.Identity](di)

	// optional, only provided when an embedding model is configured
	embedder, _ := do.Invoke[Embedder](di)

	return NewRuntime(Options{
		AgentID:     identity.AgentID,
		AgentName:   identity.Name,
		Bio:         cfg.Agent.Bio,
		Style:       cfg.Agent.Style,
		Store:       do.MustInvoke[MemoryStore](di),
		Embedder:    embedder,
		RecentCount: cfg.Dispatch.RecentMessages,
	}), nil
}

func NewRuntime(opts Options) *Runtime {
	if opts.RecentCount <= 0 {
		opts.RecentCount = 20
	}

	r := &Runtime{
		agentID:     opts.AgentID,
		agentName:   opts.AgentName,
		bio:         opts.Bio,
		style:       opts.Style,
		store:       opts.Store,
		embedder:    opts.Embedder,
		recentCount: opts.RecentCount,
		actions:     make(map[string]ActionHandler),
		evaluators:  make(map[string]Evaluator),
	}

	r.RegisterAction(ActionNone, func(context.Context, *Memory, []*Memory, State) error {
		return nil
	})

	return r
}

func (r *Runtime) AgentID() string {
	return r.agentID
}

func (r *Runtime) RegisterAction(name string, handler ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.actions[strings.ToUpper(name)] = handler
}

func (r *Runtime) RegisterEvaluator(name string, evaluator Evaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.evaluators[name]; !ok {
		r.evalOrder = append(r.evalOrder, name)
	}
	r.evaluators[name] = evaluator
}

// CreateMemory fills in missing ids and timestamps, embeds the text when an
// embedder is configured and stores the memory.
func (r *Runtime) CreateMemory(ctx context.Context, m *Memory, unique bool) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.AgentID == "" {
		m.AgentID = r.agentID
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	if r.embedder != nil && len(m.Embedding) == 0 && strings.TrimSpace(m.Content.Text) != "" {
		embedding, err := r.embedder.Embed(ctx, m.Content.Text)
		if err != nil {
			slog.Warn("Failed to embed memory", "memory_id", m.ID, "error", err)
		} else {
			m.Embedding = embedding
		}
	}

	if err := r.store.CreateMemory(ctx, m, unique); err != nil {
		return oops.In("runtime").With("memory_id", m.ID).Wrapf(err, "create memory")
	}

	return nil
}

// ComposeState builds the prompt state for message; extra values override
// the computed ones.
func (r *Runtime) ComposeState(ctx context.Context, message *Memory, extra State) (State, error) {
	recent, err := r.store.RecentMemories(ctx, message.RoomID, r.recentCount)
	if err != nil {
		return nil, oops.In("runtime").With("room_id", message.RoomID).Wrapf(err, "recent memories")
	}

	state := State{
		"agentId":            r.agentID,
		"agentName":          r.agentName,
		"bio":                r.bio,
		"style":              r.style,
		"roomId":             message.RoomID,
		"senderName":         message.UserName,
		"currentMessage":     message.Content.Text,
		"recentMessages":     FormatMessages(recent),
		"recentMessagesData": recent,
		"relevantMemories":   "",
	}

	if len(message.Embedding) > 0 {
		relevant, err := r.store.SearchMemories(ctx, SearchParams{
			RoomID:    message.RoomID,
			Query:     message.Content.Text,
			Embedding: message.Embedding,
			Threshold: relevantThreshold,
			Count:     relevantCount,
			Unique:    true,
		})
		if err != nil {
			slog.Warn("Failed to search relevant memories", "room_id", message.RoomID, "error", err)
		} else {
			relevant = excludeMemory(relevant, message.ID)
			state["relevantMemories"] = FormatMessages(relevant)
		}
	}

	maps.Copy(state, extra)

	return state, nil
}

// UpdateRecentMessageState refreshes the recent message values of state.
func (r *Runtime) UpdateRecentMessageState(ctx context.Context, state State) (State, error) {
	roomID, _ := state["roomId"].(string)
	if roomID == "" {
		return state, oops.In("runtime").Errorf("state has no room id")
	}

	recent, err := r.store.RecentMemories(ctx, roomID, r.recentCount)
	if err != nil {
		return state, oops.In("runtime").With("room_id", roomID).Wrapf(err, "recent memories")
	}

	updated := maps.Clone(state)
	updated["recentMessages"] = FormatMessages(recent)
	updated["recentMessagesData"] = recent

	return updated, nil
}

// ProcessActions runs the handlers of the actions named by responses.
func (r *Runtime) ProcessActions(ctx context.Context, message *Memory, responses []*Memory, state State) error {
	var errs []error

	for _, response := range responses {
		name := strings.ToUpper(response.Content.Action)
		if name == "" || name == ActionContinue {
			continue
		}

		r.mu.RLock()
		handler, ok := r.actions[name]
		r.mu.RUnlock()

		if !ok {
			slog.Warn("Unknown action", "action", name, "memory_id", response.ID)
			continue
		}

		if err := handler(ctx, message, responses, state); err != nil {
			errs = append(errs, fmt.Errorf("action %s: %w", name, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return oops.In("runtime").With("memory_id", message.ID).Wrapf(err, "process actions")
	}

	return nil
}

// Evaluate runs every registered evaluator in registration order.
func (r *Runtime) Evaluate(ctx context.Context, message *Memory, state State) error {
	r.mu.RLock()
	names := append([]string(nil), r.evalOrder...)
	evaluators := maps.Clone(r.evaluators)
	r.mu.RUnlock()

	var errs []error
	for _, name := range names {
		if err := evaluators[name](ctx, message, state); err != nil {
			errs = append(errs, fmt.Errorf("evaluator %s: %w", name, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return oops.In("runtime").With("memory_id", message.ID).Wrapf(err, "evaluate")
	}

	return nil
}

// FormatMessages renders memories one per line as "name: text".
func FormatMessages(memories []*Memory) string {
	var builder strings.Builder

	for _, m := range memories {
		name := m.UserName
		if name == "" {
			name = m.UserID
		}

		builder.WriteString(name)
		builder.WriteString(": ")
		builder.WriteString(m.Content.Text)

		if action := m.Content.Action; action != "" && action != ActionNone && action != ActionContinue {
			builder.WriteString(" (")
			builder.WriteString(action)
			builder.WriteString(")")
		}

		builder.WriteString("\n")
	}

	return strings.TrimSuffix(builder.String(), "\n")
}

func excludeMemory(memories []*Memory, id string) []*Memory {
	result := make([]*Memory, 0, len(memories))
	for _, m := range memories {
		if m.ID != id {
			result = append(result, m)
		}
	}

	return result
}
