package engine

import (
	"context"
	"log/slog"
	"time"

	"tgbridge/app/config"
	"tgbridge/app/model"
	"tgbridge/app/service/conversation"
	"tgbridge/app/service/interest"
	"tgbridge/app/service/queue"

	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

const defaultPruneInterval = 10 * time.Minute

// Pipeline accepts messages in arrival order and returns the work left to do
// for each of them.
type Pipeline interface {
	Intake(msg *model.Message) func(context.Context)
}

type Options struct {
	Queue          *queue.Service
	Pipeline       Pipeline
	Tracker        *interest.Tracker
	MaxConcurrency int
	IdleTTL        time.Duration
	PruneInterval  time.Duration
}

type Service struct {
	queueSvc *queue.Service
	pipeline Pipeline
	tracker  *interest.Tracker

	maxConcurrency int
	idleTTL        time.Duration
	pruneInterval  time.Duration
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(Options{
		Queue:          do.MustInvoke[*queue.Service](di),
		Pipeline:       do.MustInvoke[*conversation.Service](di),
		Tracker:        do.MustInvoke[*interest.Tracker](di),
		MaxConcurrency: cfg.Dispatch.MaxConcurrency,
		IdleTTL:        cfg.Interest.IdleTTL,
	}), nil
}

func NewService(opts Options) *Service {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 1
	}
	if opts.PruneInterval <= 0 {
		opts.PruneInterval = defaultPruneInterval
	}

	return &Service{
		queueSvc:       opts.Queue,
		pipeline:       opts.Pipeline,
		tracker:        opts.Tracker,
		maxConcurrency: opts.MaxConcurrency,
		idleTTL:        opts.IdleTTL,
		pruneInterval:  opts.PruneInterval,
	}
}

// Run reads the queue until ctx is done or the queue is closed. Intake runs
// here one message at a time, the returned work runs concurrently. Run
// waits for in-flight work before returning.
func (s *Service) Run(ctx context.Context) error {
	var group errgroup.Group
	group.SetLimit(s.maxConcurrency)

	pruneTicker := time.NewTicker(s.pruneInterval)
	defer pruneTicker.Stop()

	defer func() {
		_ = group.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pruneTicker.C:
			s.prune()
		case msg, ok := <-s.queueSvc.Channel():
			if !ok {
				return nil
			}

			task := s.pipeline.Intake(msg)
			if task == nil {
				continue
			}

			group.Go(func() error {
				task(ctx)
				return nil
			})
		}
	}
}

func (s *Service) prune() {
	if s.tracker == nil || s.idleTTL <= 0 {
		return
	}

	if removed := s.tracker.Prune(s.idleTTL); removed > 0 {
		slog.Debug("Pruned idle chats", "removed", removed, "remaining", s.tracker.Len())
	}
}
