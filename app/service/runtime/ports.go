// Package runtime holds the agent runtime the bridge talks to: memory
// storage, state composition, generation and post-response hooks. Stores
// and model clients plug in through the interfaces below.
package runtime

import (
	"context"
	"time"
)

type ModelClass string

const (
	ModelSmall ModelClass = "small"
	ModelLarge ModelClass = "large"
)

type GenerateRequest struct {
	Prompt string
	Class  ModelClass
}

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Description struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Describer explains what an image at url shows.
type Describer interface {
	Describe(ctx context.Context, url string) (*Description, error)
}

type Content struct {
	Text      string `json:"text"`
	Source    string `json:"source,omitempty"`
	URL       string `json:"url,omitempty"`
	InReplyTo string `json:"in_reply_to,omitempty"`
	Action    string `json:"action,omitempty"`
}

// Memory is a durable record of something said in a room.
type Memory struct {
	ID       string `json:"id"`
	ChatID   string `json:"chat_id,omitempty"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
	AgentID  string `json:"agent_id"`
	RoomID   string `json:"room_id"`

	Content   Content   `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Embedding []float32 `json:"embedding,omitempty"`

	// Similarity is set on search results only
	Similarity float64 `json:"-"`
}

type SearchParams struct {
	RoomID    string
	Query     string
	Embedding []float32
	Threshold float64
	Count     int
	Unique    bool
}

type MemoryStore interface {
	// CreateMemory stores m. With unique set, a memory repeating the text of
	// an existing one in the same room is skipped.
	CreateMemory(ctx context.Context, m *Memory, unique bool) error
	SearchMemories(ctx context.Context, params SearchParams) ([]*Memory, error)
	// RecentMemories returns up to count memories of a room, oldest first.
	RecentMemories(ctx context.Context, roomID string, count int) ([]*Memory, error)
}
