package status

import (
	"context"
	"log/slog"
	"time"

	"tgbridge/app/config"
	"tgbridge/app/service/conversation"
	"tgbridge/app/service/interest"
	"tgbridge/app/service/queue"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/do"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

type RevokedLister interface {
	Revoked() []string
}

type Options struct {
	Listen  string
	Tracker *interest.Tracker
	Queue   *queue.Service
	Revoked RevokedLister
}

// Service exposes the bridge state over HTTP.
type Service struct {
	listen  string
	tracker *interest.Tracker
	queue   *queue.Service
	revoked RevokedLister
	started time.Time

	app *fiber.App
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(Options{
		Listen:  cfg.Status.Listen,
		Tracker: do.MustInvoke[*interest.Tracker](di),
		Queue:   do.MustInvoke[*queue.Service](di),
		Revoked: do.MustInvoke[*conversation.Service](di),
	}), nil
}

func NewService(opts Options) *Service {
	s := &Service{
		listen:  opts.Listen,
		tracker: opts.Tracker,
		queue:   opts.Queue,
		revoked: opts.Revoked,
		started: time.Now(),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "tgbridge",
		DisableStartupMessage: true,
	})

	s.app.Get("/health", s.health)
	s.app.Get("/chats", s.chats)
	s.app.Get("/chats/:id", s.chat)

	return s
}

// Run serves until ctx is done. It returns immediately when no listen
// address is configured.
func (s *Service) Run(ctx context.Context) error {
	if s.listen == "" {
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(s.listen)
	}()

	slog.Info("Status server started", "listen", s.listen)

	select {
	case err := <-errCh:
		return oops.In("status").With("listen", s.listen).Wrapf(err, "listen")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return s.app.ShutdownWithContext(shutdownCtx)
	}
}

type chatSummary struct {
	ChatID          string    `json:"chat_id"`
	CurrentHandler  string    `json:"current_handler,omitempty"`
	LastMessageSent time.Time `json:"last_message_sent"`
	Messages        int       `json:"messages"`
}

func (s *Service) health(c *fiber.Ctx) error {
	revoked := []string{}
	if s.revoked != nil {
		revoked = append(revoked, s.revoked.Revoked()...)
	}

	return c.JSON(fiber.Map{
		"status":  "ok",
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"chats":   s.tracker.Len(),
		"queued":  s.queue.Len(),
		"dropped": s.queue.Dropped(),
		"revoked": revoked,
	})
}

func (s *Service) chats(c *fiber.Ctx) error {
	summaries := lo.Map(s.tracker.Snapshot(), func(state interest.ChatState, _ int) chatSummary {
		return chatSummary{
			ChatID:          state.ChatID,
			CurrentHandler:  state.CurrentHandler,
			LastMessageSent: state.LastMessageSent,
			Messages:        len(state.Messages),
		}
	})

	return c.JSON(summaries)
}

func (s *Service) chat(c *fiber.Ctx) error {
	state, ok := s.tracker.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "chat not found",
		})
	}

	return c.JSON(state)
}
