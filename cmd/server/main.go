package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lasher91/makemegame/internal/ai"
	"github.com/Lasher91/makemegame/internal/api"
	"github.com/Lasher91/makemegame/internal/config"
	"github.com/Lasher91/makemegame/internal/game"
	"github.com/Lasher91/makemegame/internal/logging"
	"github.com/Lasher91/makemegame/internal/ratelimit"
	"github.com/Lasher91/makemegame/internal/store"
	staticserver "github.com/Lasher91/makemegame/static"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const version = "v1.0.0-dev"

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`Make Me Game - AI party games for a room full of friends

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8080 or PORT env var)

Environment Variables:
  PORT                Port to listen on (default: 8080)
  STORE_BACKEND       "memory" or "redis" (default: memory)
  REDIS_URL           Redis URL for the redis backend (default: redis://localhost:6379/0)
  AI_PROVIDER         "anthropic", "openai" or "ollama" (default: anthropic)
  AI_MODEL            Model name (default depends on provider)
  ANTHROPIC_API_KEY   Anthropic API key (required for anthropic)
  ANTHROPIC_BASE_URL  Custom Anthropic API base URL (optional)
  OPENAI_API_KEY      OpenAI API key (required for openai)
  OPENAI_BASE_URL     Custom OpenAI API base URL (optional)
  OLLAMA_HOST         Ollama host URL (default: http://localhost:11434)
  GENERATION_TIMEOUT  Upper bound for one generation call (default: 90s)
  RATE_LIMIT          Voting game generations per IP per day (default: 3)
  PUBLIC_URL          Base for share links without an Origin header (default: https://makemegame.com)
  ALLOWED_ORIGINS     Comma separated CORS origins (default: none, same origin only)
  LOG_LEVEL           debug, info, warn or error (default: info)
  LOG_FORMAT          console or json (default: console)
  LOG_FILE            Write logs to this rotating file instead of stdout
  EXPORT_ENABLED      Export finished voting games to file (default: false)
  EXPORT_FILE         Path to export game results (default: ./makemegame-results.txt)

Examples:
  %s                  Start server with default settings
  %s --port 3000      Start server on port 3000

Visit http://localhost:8080 after starting the server.
`, os.Args[0], os.Args[0], os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("Make Me Game %s\n", version)
		return
	}

	cfg := config.FromEnv()
	if *portFlag != "" {
		cfg.Port = *portFlag
	}

	logCloser := logging.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
	_ = logCloser.Close()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if c, ok := st.(io.Closer); ok {
		defer c.Close()
	}

	provider, model, err := ai.NewProvider(ai.Config{
		Provider:         cfg.AIProvider,
		Model:            cfg.AIModel,
		AnthropicKey:     cfg.AnthropicKey,
		AnthropicBaseURL: cfg.AnthropicBaseURL,
		OpenAIKey:        cfg.OpenAIKey,
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		OllamaHost:       cfg.OllamaHost,
	})
	if err != nil {
		return err
	}
	gen, err := ai.NewGenerator(provider, model, cfg.GenerationTimeout)
	if err != nil {
		return err
	}
	log.Info().Str("provider", cfg.AIProvider).Str("model", model).Dur("timeout", cfg.GenerationTimeout).Msg("generator ready")

	exportFile := ""
	if cfg.ExportEnabled {
		exportFile = cfg.ExportFile
	}

	gin.SetMode(gin.ReleaseMode)
	r := api.NewRouter(api.Options{
		Rooms:          game.NewRoomManager(st, gen),
		Vault:          game.NewVault(st),
		Limiter:        ratelimit.New(cfg.RateLimit),
		PublicURL:      cfg.PublicURL,
		AllowedOrigins: cfg.AllowedOrigins,
		ExportFile:     exportFile,
		Fallback:       staticserver.Handler(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreBackend).Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "", "memory":
		return store.NewMemory(), nil
	case "redis":
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		r, err := store.NewRedis(pingCtx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return r, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
