package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Tyrowin/gameportal/internal/account"
	"github.com/Tyrowin/gameportal/internal/auth"
	"github.com/Tyrowin/gameportal/internal/catalog"
	"github.com/Tyrowin/gameportal/internal/chat"
	"github.com/Tyrowin/gameportal/internal/config"
	"github.com/Tyrowin/gameportal/internal/logging"
	"github.com/Tyrowin/gameportal/internal/server"
	"github.com/Tyrowin/gameportal/internal/storage/sqlite"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Warn().Err(err).Msg("Failed to load .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
		Output: os.Stdout,
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server stopped with error")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close store")
		}
	}()

	tokens, err := auth.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
	if err != nil {
		return err
	}
	accounts := account.NewService(store, cfg.Security.BcryptCost)
	products := catalog.NewService(store)

	if _, err := accounts.EnsureAdmin(ctx, account.Credentials{
		Username: cfg.Security.AdminUsername,
		Password: cfg.Security.AdminPassword,
	}); err != nil {
		return err
	}
	if cfg.Database.SeedSamples {
		n, err := products.SeedSamples(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logging.Info().Int("count", n).Msg("Seeded sample products")
		}
	}

	if !cfg.Chat.RequireToken {
		logging.Warn().Msg("Chat connections are accepted without a token and join identities are taken as supplied; set CHAT_REQUIRE_TOKEN=true to require a bearer token on /ws")
	}

	engine := chat.NewEngine(chat.Config{
		QueueSize:       cfg.Chat.EventQueueSize,
		TimestampFormat: cfg.Chat.TimestampFormat,
	})
	engineCtx, stopEngine := context.WithCancel(context.Background())
	defer stopEngine()
	go engine.Run(engineCtx)

	gateway := server.NewGateway(engine, tokens, cfg.Chat)
	handlers := server.NewHandlers(accounts, products, tokens, engine)
	httpServer := server.CreateServer(cfg.Server, server.SetupRoutes(handlers, gateway, tokens, cfg.Security))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received")
	}

	if err := server.ShutdownServer(httpServer, cfg.Server.ShutdownTimeout); err != nil {
		logging.Warn().Err(err).Msg("HTTP server did not shut down cleanly")
	}
	stopEngine()
	<-engine.Done()
	if err := gateway.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
		logging.Warn().Err(err).Msg("Chat gateway did not drain in time")
	}

	logging.Info().Msg("Server stopped")
	return nil
}
