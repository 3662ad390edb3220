package queue

import (
	"log/slog"
	"sync/atomic"

	"tgbridge/app/config"
	"tgbridge/app/model"

	"github.com/samber/do"
)

const defaultBufferSize = 64

var _ do.Shutdownable = (*Service)(nil)

// Service buffers inbound messages between the transport and the engine.
type Service struct {
	queue   chan *model.Message
	dropped atomic.Int64
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewQueue(cfg.Dispatch.QueueSize), nil
}

func NewQueue(size int) *Service {
	if size <= 0 {
		size = defaultBufferSize
	}

	return &Service{
		queue: make(chan *model.Message, size),
	}
}

// Add enqueues msg without blocking. It reports false when the message was
// dropped because the queue is full or already shut down.
func (s *Service) Add(msg *model.Message) (added bool) {
	defer func() {
		if r := recover(); r != nil {
			// send on a closed channel during shutdown
			added = false
		}
	}()

	select {
	case s.queue <- msg:
		return true
	default:
		s.dropped.Add(1)
		slog.Warn("Message queue is full",
			"chat_id", msg.ChatID,
			"message_id", msg.ID,
		)
		return false
	}
}

func (s *Service) Channel() <-chan *model.Message {
	return s.queue
}

func (s *Service) Len() int {
	return len(s.queue)
}

func (s *Service) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Service) Shutdown() error {
	close(s.queue)

	return nil
}
