package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tgbridge/app/config"
	"tgbridge/app/service/runtime"

	"github.com/samber/do"
	"github.com/samber/oops"
)

var _ runtime.MemoryStore = (*Service)(nil)

// Service is a memory store kept in RAM and appended to a JSON lines file.
type Service struct {
	path string

	mu       sync.RWMutex
	memories []*runtime.Memory
	ids      map[string]struct{}
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return Open(cfg.Memory.Path)
}

// Open loads the memories stored at path, creating the file if needed.
func Open(path string) (*Service, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, oops.In("memory").With("path", path).Wrapf(err, "create data dir")
	}

	s := &Service{
		path: path,
		ids:  make(map[string]struct{}),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	slog.Info("Memory store loaded", "path", path, "memories", len(s.memories))

	return s, nil
}

func (s *Service) load() error {
	file, err := os.OpenFile(s.path, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		return oops.In("memory").With("path", s.path).Wrapf(err, "open memory file")
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var m runtime.Memory
		if err = json.Unmarshal([]byte(line), &m); err != nil {
			return oops.In("memory").With("path", s.path).Wrapf(err, "parse JSON line")
		}

		s.memories = append(s.memories, &m)
		s.ids[m.ID] = struct{}{}
	}

	if err = scanner.Err(); err != nil {
		return oops.In("memory").With("path", s.path).Wrapf(err, "read memory file")
	}

	return nil
}

func (s *Service) append(m *runtime.Memory) error {
	file, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return oops.In("memory").With("path", s.path).Wrapf(err, "open memory file")
	}
	defer file.Close()

	data, err := json.Marshal(m)
	if err != nil {
		return oops.In("memory").With("memory_id", m.ID).Wrapf(err, "marshal memory")
	}

	writer := bufio.NewWriter(file)
	if _, err = writer.Write(append(data, '\n')); err != nil {
		return oops.In("memory").With("memory_id", m.ID).Wrapf(err, "write memory")
	}

	if err = writer.Flush(); err != nil {
		return oops.In("memory").With("memory_id", m.ID).Wrapf(err, "flush writer")
	}

	return nil
}

func (s *Service) CreateMemory(_ context.Context, m *runtime.Memory, unique bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[m.ID]; exists {
		slog.Debug("Memory already stored", "memory_id", m.ID)
		return nil
	}

	if unique {
		for _, existing := range s.memories {
			if existing.RoomID == m.RoomID && existing.Content.Text == m.Content.Text {
				slog.Debug("Skipped duplicate memory", "memory_id", m.ID, "room_id", m.RoomID)
				return nil
			}
		}
	}

	if err := s.append(m); err != nil {
		return err
	}

	stored := *m
	s.memories = append(s.memories, &stored)
	s.ids[m.ID] = struct{}{}

	return nil
}

func (s *Service) SearchMemories(_ context.Context, params runtime.SearchParams) ([]*runtime.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := runtime.RankMemories(s.memories, params)

	slog.Debug("Search completed",
		"room_id", params.RoomID,
		"results", len(result),
	)

	return result, nil
}

func (s *Service) RecentMemories(_ context.Context, roomID string, count int) ([]*runtime.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*runtime.Memory, 0, count)
	for i := len(s.memories) - 1; i >= 0 && len(result) < count; i-- {
		if s.memories[i].RoomID == roomID {
			copied := *s.memories[i]
			result = append(result, &copied)
		}
	}

	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}

	return result, nil
}

func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.memories)
}
