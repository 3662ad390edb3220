package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"tgbridge/app/client/langchain"
	"tgbridge/app/client/llm"
	"tgbridge/app/client/mcpmemory"
	"tgbridge/app/client/telegram"
	"tgbridge/app/config"
	"tgbridge/app/model"
	"tgbridge/app/service/conversation"
	"tgbridge/app/service/decision"
	"tgbridge/app/service/engine"
	"tgbridge/app/service/interest"
	"tgbridge/app/service/memory"
	"tgbridge/app/service/queue"
	"tgbridge/app/service/runtime"
	"tgbridge/app/service/status"
	"tgbridge/app/util/mylog"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, telegram.NewClient)
	tgClient := do.MustInvoke[*telegram.Client](di)
	do.ProvideValue(di, tgClient.Identity())
	do.Provide(di, func(i *do.Injector) (conversation.Transport, error) {
		return do.MustInvoke[*telegram.Client](i), nil
	})

	provideModels(di, cfg)
	provideMemory(di, cfg)

	do.Provide(di, interest.New)
	do.Provide(di, queue.New)
	do.Provide(di, runtime.New)
	do.Provide(di, decision.New)
	do.Provide(di, conversation.New)
	do.Provide(di, engine.New)
	do.Provide(di, status.New)

	queueSvc := do.MustInvoke[*queue.Service](di)
	conversationSvc := do.MustInvoke[*conversation.Service](di)

	tgClient.SetListener(
		func(msg *model.Message) {
			queueSvc.Add(msg)
		},
		conversationSvc.Revoke,
	)

	slog.Info("Service started", "agent", cfg.Agent.Name, "handle", tgClient.Identity().Handle)

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	group, groupCtx := errgroup.WithContext(appCtx)
	group.Go(func() error {
		return tgClient.Run(groupCtx)
	})
	group.Go(func() error {
		return do.MustInvoke[*engine.Service](di).Run(groupCtx)
	})
	group.Go(func() error {
		return do.MustInvoke[*status.Service](di).Run(groupCtx)
	})

	if err = group.Wait(); err != nil {
		slog.Error("Service stopped with error", "error", err)
	}
}

func provideModels(di *do.Injector, cfg *config.Config) {
	switch cfg.Generator.Provider {
	case "langchain":
		do.Provide(di, func(i *do.Injector) (runtime.Generator, error) {
			gen, err := langchain.New(i)
			return gen, err
		})
	default:
		do.Provide(di, func(i *do.Injector) (runtime.Generator, error) {
			gen, err := llm.NewGenerator(i)
			return gen, err
		})
	}

	if cfg.OpenAI.Embedding.Enabled() {
		do.Provide(di, func(i *do.Injector) (runtime.Embedder, error) {
			embedder, err := llm.NewEmbedder(i)
			return embedder, err
		})
	}

	if cfg.OpenAI.Vision.Enabled() {
		do.Provide(di, func(i *do.Injector) (runtime.Describer, error) {
			describer, err := llm.NewDescriber(i)
			return describer, err
		})
	}
}

func provideMemory(di *do.Injector, cfg *config.Config) {
	switch cfg.Memory.Backend {
	case "mcp":
		do.Provide(di, mcpmemory.New)
		do.Provide(di, func(i *do.Injector) (runtime.MemoryStore, error) {
			return do.MustInvoke[*mcpmemory.Store](i), nil
		})
	default:
		do.Provide(di, memory.New)
		do.Provide(di, func(i *do.Injector) (runtime.MemoryStore, error) {
			return do.MustInvoke[*memory.Service](i), nil
		})
	}
}
