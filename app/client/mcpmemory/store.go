// Package mcpmemory keeps agent memories in an MCP memory server knowledge
// graph: one entity per room, one observation per memory.
package mcpmemory

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tgbridge/app/config"
	"tgbridge/app/service/runtime"

	"github.com/elliotchance/pie/v2"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/samber/do"
	"github.com/samber/oops"
)

const (
	roomEntityType = "chat_room"
	initTimeout    = time.Minute
)

var (
	_ runtime.MemoryStore = (*Store)(nil)
	_ do.Shutdownable     = (*Store)(nil)
)

type toolCaller interface {
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

type Store struct {
	client toolCaller

	mu    sync.Mutex
	rooms map[string]struct{}
}

func New(di *do.Injector) (*Store, error) {
	cfg := do.MustInvoke[*config.Config](di)

	mcpClient, err := client.NewStdioMCPClient(cfg.Memory.MCP.Command, nil, cfg.Memory.MCP.Args...)
	if err != nil {
		return nil, oops.In("mcpmemory").With("command", cfg.Memory.MCP.Command).Wrapf(err, "create MCP client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "tgbridge",
		Version: "1.0.0",
	}

	info, err := mcpClient.Initialize(ctx, initRequest)
	if err != nil {
		_ = mcpClient.Close()
		return nil, oops.In("mcpmemory").Wrapf(err, "initialize MCP client")
	}

	slog.Info("Connected to MCP memory server", "server", info.ServerInfo.Name, "version", info.ServerInfo.Version)

	return NewStore(mcpClient), nil
}

func NewStore(caller toolCaller) *Store {
	return &Store{
		client: caller,
		rooms:  make(map[string]struct{}),
	}
}

func (s *Store) CreateMemory(ctx context.Context, m *runtime.Memory, unique bool) error {
	errorBuilder := oops.In("mcpmemory").With("memory_id", m.ID, "room_id", m.RoomID)

	if err := s.ensureRoom(ctx, m.RoomID); err != nil {
		return errorBuilder.Wrap(err)
	}

	if unique {
		existing, err := s.roomMemories(ctx, m.RoomID)
		if err != nil {
			return errorBuilder.Wrap(err)
		}

		for _, e := range existing {
			if e.Content.Text == m.Content.Text {
				return nil
			}
		}
	}

	data, err := json.Marshal(m)
	if err != nil {
		return errorBuilder.Wrapf(err, "marshal memory")
	}

	_, err = s.call(ctx, "add_observations", map[string]any{
		"observations": []map[string]any{
			{
				"entityName": entityName(m.RoomID),
				"contents":   []string{string(data)},
			},
		},
	})
	if err != nil {
		return errorBuilder.Wrap(err)
	}

	return nil
}

func (s *Store) SearchMemories(ctx context.Context, params runtime.SearchParams) ([]*runtime.Memory, error) {
	memories, err := s.roomMemories(ctx, params.RoomID)
	if err != nil {
		return nil, oops.In("mcpmemory").With("room_id", params.RoomID).Wrap(err)
	}

	return runtime.RankMemories(memories, params), nil
}

func (s *Store) RecentMemories(ctx context.Context, roomID string, count int) ([]*runtime.Memory, error) {
	memories, err := s.roomMemories(ctx, roomID)
	if err != nil {
		return nil, oops.In("mcpmemory").With("room_id", roomID).Wrap(err)
	}

	if count > 0 && len(memories) > count {
		memories = memories[len(memories)-count:]
	}

	return memories, nil
}

func (s *Store) Shutdown() error {
	return s.client.Close()
}

func (s *Store) ensureRoom(ctx context.Context, roomID string) error {
	s.mu.Lock()
	_, known := s.rooms[roomID]
	s.mu.Unlock()

	if known {
		return nil
	}

	// create_entities skips names that already exist
	_, err := s.call(ctx, "create_entities", map[string]any{
		"entities": []map[string]any{
			{
				"name":         entityName(roomID),
				"entityType":   roomEntityType,
				"observations": []string{},
			},
		},
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.rooms[roomID] = struct{}{}
	s.mu.Unlock()

	return nil
}

type graph struct {
	Entities []struct {
		Name         string   `json:"name"`
		Observations []string `json:"observations"`
	} `json:"entities"`
}

// roomMemories returns the memories of a room ordered by creation time.
func (s *Store) roomMemories(ctx context.Context, roomID string) ([]*runtime.Memory, error) {
	text, err := s.call(ctx, "open_nodes", map[string]any{
		"names": []string{entityName(roomID)},
	})
	if err != nil {
		return nil, err
	}

	var result graph
	if err = json.Unmarshal([]byte(text), &result); err != nil {
		return nil, oops.With("output", text).Wrapf(err, "failed to unmarshal graph")
	}

	var memories []*runtime.Memory
	for _, entity := range result.Entities {
		if entity.Name != entityName(roomID) {
			continue
		}

		for _, observation := range entity.Observations {
			var m runtime.Memory
			if err = json.Unmarshal([]byte(observation), &m); err != nil {
				slog.Debug("Skipping foreign observation", "room_id", roomID, "error", err)
				continue
			}
			memories = append(memories, &m)
		}
	}

	return pie.SortStableUsing(memories, func(a, b *runtime.Memory) bool {
		return a.CreatedAt.Before(b.CreatedAt)
	}), nil
}

func (s *Store) call(ctx context.Context, tool string, args map[string]any) (string, error) {
	callRequest := mcp.CallToolRequest{
		Request: mcp.Request{
			Method: "tools/call",
		},
	}
	callRequest.Params.Name = tool
	callRequest.Params.Arguments = args

	response, err := s.client.CallTool(ctx, callRequest)
	if err != nil {
		return "", oops.With("tool", tool).Wrapf(err, "MCP tool call failed")
	}

	var result strings.Builder
	for _, content := range response.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			result.WriteString(textContent.Text)
			result.WriteString("\n")
		}
	}

	text := strings.TrimSpace(result.String())
	if response.IsError {
		return "", oops.With("tool", tool).Errorf("MCP tool error: %s", text)
	}

	return text, nil
}

func entityName(roomID string) string {
	return "room:" + roomID
}
