package main

import (
	"chamber/internal/client"
	"chamber/internal/config"
	"chamber/internal/database/db_client"
	"chamber/internal/http/adminhandler"
	"chamber/internal/http/http_server"
	"chamber/internal/message"
	"chamber/internal/redis/redis_client"
	"chamber/internal/relay"
	"chamber/internal/server"
	"chamber/internal/sessionlog"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

const (
	modeServer = "server"
	modeClient = "client"
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	mode := modeServer
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.LogProduction {
		if prod, err := zap.NewProduction(); err == nil {
			Log = prod
			zap.ReplaceGlobals(Log)
		}
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	switch mode {
	case modeServer:
		runServer(ctx, cfg)
	case modeClient:
		err := client.Run(ctx, client.Options{
			Addr:     cfg.ListenAddr,
			Name:     cfg.ClientName,
			MaxFrame: cfg.MsgBufSize,
		}, os.Stdin, os.Stdout)
		if err != nil {
			Log.Fatal("client", zap.Error(err))
		}
	default:
		Log.Fatal("unknown mode, want server or client", zap.String("mode", mode))
	}
}

func runServer(ctx context.Context, cfg *config.Config) {
	instanceID := uuid.NewString()
	Log.Info("CHAMBER SERVER", zap.String("instance", instanceID))

	// 3. Bind the chamber listener; nothing works without it
	ln, err := server.Listen(cfg.ListenAddr)
	if err != nil {
		Log.Fatal("Failed to bind", zap.String("addr", cfg.ListenAddr), zap.Error(err))
	}

	var options []server.DispatcherOption

	// 4. Redis relay between instances
	if cfg.RedisEnabled {
		redisClient, err := redis_client.NewRedisClient(ctx, cfg.RedisHost, cfg.RedisPort)
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()

		rel := relay.New(redisClient, cfg.RedisChannel, instanceID)
		relayed := make(chan message.Message, 64)
		go rel.Subscribe(ctx, relayed)
		options = append(options, server.WithPublisher(rel), server.WithRelayed(relayed))
		Log.Debug("Redis relay enabled", zap.String("channel", cfg.RedisChannel))
	}

	// 5. Postgres session audit log
	if cfg.PostgresEnabled {
		pgDb, err := db_client.Open(ctx, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
		if err != nil {
			Log.Fatal("pg-open", zap.Error(err))
		}
		defer pgDb.Close()

		if err := sessionlog.Migrate(ctx, pgDb); err != nil {
			Log.Fatal("pg-migrate", zap.Error(err))
		}
		rec := sessionlog.New(pgDb, instanceID, 1024)
		go rec.Run(ctx)
		options = append(options, server.WithRecorder(rec))
	}

	chamber := server.New(cfg.MsgBufSize, cfg.WriteTimeout, options...)

	// 6. Admin HTTP + websocket gateway
	if cfg.HttpEnabled {
		admin := adminhandler.New(ctx, chamber, cfg.MsgBufSize, cfg.WriteTimeout)
		httpServer := http_server.NewHttpServer(cfg.HttpServerPort, admin)
		go func() {
			if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				Log.Fatal("Failed to start HTTP server", zap.Error(err))
			}
		}()
		defer httpServer.Dispose()
	}

	// 7. Acceptor + dispatcher, until a signal arrives
	if err := chamber.Run(ctx, ln); err != nil {
		Log.Error("chamber stopped", zap.Error(err))
	}
	Log.Info("chamber shut down")
}
