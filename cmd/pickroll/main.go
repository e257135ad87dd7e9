package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"pick-roll/api"
	"pick-roll/auth"
	"pick-roll/internal"
	"pick-roll/moderation"
	"pick-roll/observability"
	"pick-roll/privatechat"
	"pick-roll/repositories"
	"pick-roll/search"
	"pick-roll/services"
	"pick-roll/storage"
	"strconv"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Exit codes reported to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pickroll terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal or a server failure.
// Deferred closes run before main exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, _ := internal.CharacterRune(config.CharReplacement)

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Storage
	db, err := badger.Open(buildBadgerOpts(ctx, config, logger))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	blobs, err := storage.NewDiskStorage(config.FilesDir, config.PublicBaseURL, logger)
	if err != nil {
		return exitRuntime, err
	}

	// 3. Services
	moderator, err := moderation.NewModerator(internal.Words(config.CensoredWords), charReplacement, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("moderator init failed: %w", err)
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	store := repositories.NewDocumentRepository(db, logger)
	users := repositories.NewUserRepository(store)
	gate := privatechat.NewGate(store, privatechat.NewConversationCache(), logger, metrics)
	postService := services.NewPostService(store, search.NewIndex(blugeWriter, logger), moderator,
		logger, metrics, config.LatestPostsLimit)
	if count, err := postService.Reindex(ctx); err != nil {
		logger.Error("Search index rebuild failed", "error", err)
	} else {
		logger.Info("Search index rebuilt", "posts", count)
	}

	router := api.NewRouter(api.Dependencies{
		Auth:           services.NewAuthService(users, auth.NewTokenIssuer(config.JwtSecret, config.AuthTokenDuration), blobs, logger),
		Users:          services.NewUserService(users),
		PublicChat:     services.NewPublicChatService(store, moderator, logger, metrics),
		PrivateChat:    privatechat.NewService(gate, store, logger, metrics),
		Posts:          postService,
		FilesDir:       config.FilesDir,
		Gatherer:       registry,
		Metrics:        metrics,
		Log:            logger,
		MaxUploadBytes: config.MaxUploadBytes,
	})

	// 4. Servers
	// Shutdown does not track hijacked websockets: cancelling the base context ends their streams.
	baseCtx, cancelStreams := context.WithCancel(context.Background())
	defer cancelStreams()
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(config.Host, strconv.Itoa(config.Port)),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       10 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	httpServer.RegisterOnShutdown(cancelStreams)

	grpcAddress := net.JoinHostPort(config.Host, strconv.Itoa(config.GrpcPort))
	listener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	var debugServer *http.Server
	if logger.Enabled(ctx, slog.LevelDebug) {
		mux := http.NewServeMux()
		mux.Handle("/inspect", internal.InspectHandler(db, documentMapper))
		debugServer = &http.Server{
			Addr:              net.JoinHostPort("localhost", strconv.Itoa(config.DebugPort)),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		logger.Info("Starting gRPC health server", "address", grpcAddress)
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server error: %w", err)
		}
		return nil
	})
	if debugServer != nil {
		group.Go(func() error {
			logger.Info("Debug Badger inspector available", "url", "http://"+debugServer.Addr+"/inspect?prefix=doc/")
			if err := debugServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("debug server error: %w", err)
			}
			return nil
		})
	}

	// 5. Graceful shutdown on signal or on the first server failure
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("Shutting down gracefully...")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		if debugServer != nil {
			_ = debugServer.Shutdown(shutdownCtx)
		}
		grpcServer.GracefulStop()
		return err
	})

	if err := group.Wait(); err != nil {
		return exitRuntime, err
	}
	logger.Info("Program stopped cleanly")
	return exitOK, nil
}

func buildBadgerOpts(ctx context.Context, config internal.Config, logger *slog.Logger) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}

// documentMapper shows decoded document fields in the inspector.
func documentMapper(key string, val []byte) internal.InspectRow {
	row := internal.DefaultMapper(key, val)
	doc, err := repositories.DecodeEntry(key, val)
	if err != nil {
		row.Error = err.Error()
		return row
	}
	row.Fields = doc.Fields
	return row
}
