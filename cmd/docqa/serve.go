package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/0xcro3dile/docqa-go/internal/adapters/embedding"
	"github.com/0xcro3dile/docqa-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/docqa-go/internal/adapters/knowledgebase"
	"github.com/0xcro3dile/docqa-go/internal/adapters/llm"
	"github.com/0xcro3dile/docqa-go/internal/adapters/sessionstore"
	"github.com/0xcro3dile/docqa-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/docqa-go/internal/config"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
	"github.com/0xcro3dile/docqa-go/internal/domain/usecases"
	httpserver "github.com/0xcro3dile/docqa-go/internal/infrastructure/http"
	"github.com/0xcro3dile/docqa-go/internal/infrastructure/logging"
	"github.com/0xcro3dile/docqa-go/internal/infrastructure/metrics"
)

func serveCMD() *cobra.Command {
	var cfgPath, addr, logLevel string

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg)
		},
	}
	serve.Flags().StringVarP(&cfgPath, "config", "c", "config.yaml", "config file")
	serve.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	serve.Flags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")
	return serve
}

func run(ctx context.Context, cfg *config.AppConfig) error {
	log.Debug().Interface("config", cfg).Msg("loaded config")

	kb := knowledgebase.NewFolder(cfg.KnowledgeBase.Folder)
	if err := kb.Ensure(); err != nil {
		return err
	}

	runtime := embedding.NewRuntime(embeddingFactory(cfg.Embedding), cfg.Embedding.Probe)
	if err := runtime.Init(ctx); err != nil {
		return err
	}
	defer runtime.Close()

	var storeOpts []sessionstore.Option
	if cfg.Sessions.Capacity > 0 {
		storeOpts = append(storeOpts, sessionstore.WithCapacity(cfg.Sessions.Capacity))
	}
	if cfg.Sessions.TTL.Duration > 0 {
		storeOpts = append(storeOpts, sessionstore.WithTTL(cfg.Sessions.TTL.Duration))
	}
	store := sessionstore.NewMemoryStore(storeOpts...)

	generator := llm.NewOllamaLLMAdapter(cfg.Ollama.BaseURL, cfg.Ollama.GenerationModel, cfg.Ollama.Timeout.Duration)

	ingest, err := usecases.NewIngestUseCase(runtime, vectordb.BuildIndex, store, kb, cfg.Chunker.Size, cfg.Chunker.Overlap)
	if err != nil {
		return err
	}
	query, err := usecases.NewQueryUseCase(runtime, vectordb.BuildIndex, store, kb, generator, cfg.Chunker.Size, cfg.Chunker.Overlap)
	if err != nil {
		return err
	}

	m := metrics.New(store.Len)

	if cfg.KnowledgeBase.Watch {
		stopWatch, err := watchKB(ctx, kb.Dir(), m)
		if err != nil {
			log.Warn().Err(err).Str("dir", kb.Dir()).Msg("knowledge base watcher disabled")
		} else {
			defer stopWatch()
		}
	}

	log.Info().
		Str("generation_model", generator.Model()).
		Str("embedding_provider", cfg.Embedding.Provider).
		Str("embedding_model", cfg.Embedding.Model).
		Str("kb_folder", kb.Dir()).
		Msg("components ready")

	srv := httpserver.NewServer(query, ingest, kb, runtime, store, m, httpserver.Options{
		Addr:            cfg.Server.Addr,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		MaxUploadBytes:  cfg.Server.MaxUploadBytes,
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration,
	})
	return srv.Start(ctx)
}

func embeddingFactory(cfg config.EmbeddingConfig) embedding.Factory {
	return func(ctx context.Context) (ports.EmbeddingService, error) {
		switch cfg.Provider {
		case config.ProviderLangChain:
			return embedding.NewLangChainOllama(cfg.BaseURL, cfg.Model)
		default:
			return embedding.NewOllamaAdapter(cfg.BaseURL, cfg.Model, cfg.Timeout.Duration), nil
		}
	}
}

// watchKB logs and counts changes to the knowledge base folder until ctx ends.
func watchKB(ctx context.Context, dir string, m *metrics.Metrics) (func(), error) {
	w, err := filewatcher.NewFSNotifyWatcher(nil)
	if err != nil {
		return nil, err
	}
	events, err := w.Watch(ctx, dir)
	if err != nil {
		w.Stop()
		return nil, err
	}

	go func() {
		for ev := range events {
			m.ObserveFileEvent(ev.Operation)
			log.Info().Str("path", ev.Path).Str("op", ev.Operation.String()).Msg("knowledge base changed")
		}
	}()

	return func() { w.Stop() }, nil
}
