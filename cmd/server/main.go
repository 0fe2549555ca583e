// Lingua conversation service.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/openai/openai-go/option"

	"github.com/barekit/lingua/pkg/api"
	"github.com/barekit/lingua/pkg/artifact"
	"github.com/barekit/lingua/pkg/cache"
	"github.com/barekit/lingua/pkg/config"
	"github.com/barekit/lingua/pkg/knowledge"
	knowledgeopenai "github.com/barekit/lingua/pkg/knowledge/openai"
	knowledgepostgres "github.com/barekit/lingua/pkg/knowledge/postgres"
	knowledgeqdrant "github.com/barekit/lingua/pkg/knowledge/qdrant"
	"github.com/barekit/lingua/pkg/llm"
	llmopenai "github.com/barekit/lingua/pkg/llm/openai"
	"github.com/barekit/lingua/pkg/prompt"
	"github.com/barekit/lingua/pkg/session"
	"github.com/barekit/lingua/pkg/speech/ffmpeg"
	speechopenai "github.com/barekit/lingua/pkg/speech/openai"
	"github.com/barekit/lingua/pkg/store"
)

const snippetVectorSize = 1536

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "store", cfg.StoreType, "cache", cfg.CacheType)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.NewFactory(ctx, store.Config{
		Type:             store.Type(cfg.StoreType),
		ConnectionString: cfg.StoreDSN,
		Username:         cfg.StoreUser,
		Password:         cfg.StorePassword,
		DBName:           cfg.StoreDBName,
	})
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	slog.Info("Store connected", "type", cfg.StoreType)

	ca, err := cache.NewFactory(ctx, cache.Config{
		Type:             cache.Type(cfg.CacheType),
		ConnectionString: cfg.CacheURL,
	})
	if err != nil {
		slog.Error("Failed to initialize cache", "error", err)
		os.Exit(1)
	}
	slog.Info("Cache connected", "type", cfg.CacheType)

	provider := llmopenai.New(
		option.WithAPIKey(cfg.LLMAPIKey),
		option.WithBaseURL(cfg.LLMBaseURL),
	)

	template, err := prompt.LoadTemplate(cfg.PromptPath)
	if err != nil {
		slog.Warn("Failed to load prompt template, using fallback", "error", err, "path", cfg.PromptPath)
		template = prompt.NewTemplate(prompt.FallbackTemplate)
	}

	params := llm.DefaultParams()
	if cfg.LLMModel != "" {
		params.Model = cfg.LLMModel
	}

	opts := []session.Option{
		session.WithTemplate(template),
		session.WithParams(params),
		session.WithRetentionCap(cfg.RetentionCap),
	}

	var artifacts *artifact.Manager
	if cfg.SpeechAPIKey != "" {
		artifacts, err = artifact.NewManager(cfg.AudioDir, cfg.AudioTTL)
		if err != nil {
			slog.Error("Failed to initialize artifact manager", "error", err)
			os.Exit(1)
		}
		artifacts.StartJanitor(ctx, cfg.SweepInterval)

		speechProvider := speechopenai.New(option.WithAPIKey(cfg.SpeechAPIKey))
		opts = append(opts,
			session.WithSpeech(speechProvider, artifacts),
			session.WithTranscription(speechProvider, ffmpeg.New()),
		)
		slog.Info("Voice features enabled", "audio_dir", cfg.AudioDir, "ttl", cfg.AudioTTL)
	} else {
		slog.Info("Voice features disabled (OPENAI_API_KEY not set)")
	}

	if library := buildLibrary(cfg); library != nil {
		opts = append(opts, session.WithLibrary(library))
		slog.Info("Topic suggestions enabled", "vector_store", cfg.VectorStore)
	}

	sessions := session.New(st, ca, provider, opts...)

	baseHandler := api.NewHandler(sessions)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	api.NewConversationHandler(baseHandler).RegisterRoutes(r)
	api.NewQueryHandler(baseHandler).RegisterRoutes(r)
	api.NewPreferenceHandler(baseHandler).RegisterRoutes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	slog.Info("Server stopped")
}

// buildLibrary wires the optional practice snippet library. It returns nil
// when no vector store is configured.
func buildLibrary(cfg *config.Config) *knowledge.Library {
	if cfg.VectorStore == "" || cfg.SpeechAPIKey == "" {
		return nil
	}

	var (
		snippets knowledge.SnippetStore
		err      error
	)
	switch cfg.VectorStore {
	case "qdrant":
		snippets, err = knowledgeqdrant.New(cfg.QdrantHost, cfg.QdrantPort, "practice_snippets", snippetVectorSize)
	case "postgres":
		snippets, err = knowledgepostgres.New(cfg.VectorDSN)
	default:
		slog.Warn("Unknown vector store type, topic suggestions disabled", "type", cfg.VectorStore)
		return nil
	}
	if err != nil {
		slog.Warn("Failed to initialize vector store, topic suggestions disabled", "error", err)
		return nil
	}

	embedder := knowledgeopenai.NewEmbedder(option.WithAPIKey(cfg.SpeechAPIKey))
	return knowledge.NewLibrary(embedder, snippets)
}
