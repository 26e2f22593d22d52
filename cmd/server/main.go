package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boardtycoon/tycoon-server-go/internal/broadcast"
	"github.com/boardtycoon/tycoon-server-go/internal/chat"
	"github.com/boardtycoon/tycoon-server-go/internal/config"
	"github.com/boardtycoon/tycoon-server-go/internal/engine"
	"github.com/boardtycoon/tycoon-server-go/internal/repository"
	"github.com/boardtycoon/tycoon-server-go/internal/server"
	"github.com/boardtycoon/tycoon-server-go/internal/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

const shutdownTimeout = 15 * time.Second

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting tycoon server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("tycoon server stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	// Cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("set up telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	store, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	auth := server.NewAdminAuthenticator(cfg.Auth.AdminPasswordHash)
	if !auth.Enabled() {
		logger.Warn("admin password not configured; admin commands disabled")
	}

	// Broadcast hub
	hub := broadcast.NewHub(cfg.Server.WebSocket, logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	// Game engine
	eng := engine.New(store, hub, cfg.Game, logger)
	defer eng.Close()
	logger.Info("game engine initialized",
		zap.Int("starting_money", cfg.Game.StartingMoney),
		zap.Duration("auction_countdown", cfg.Game.AuctionCountdown),
	)

	rooms := chat.NewManager(store, hub, logger)
	dispatcher := server.NewDispatcher(eng, rooms, logger)

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(server.ChainUnaryInterceptors(
			server.RecoveryInterceptor(logger),
			server.LoggingInterceptor(logger),
			server.AdminInterceptor(auth, logger),
		)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
		grpc.MaxConcurrentStreams(uint32(cfg.Server.GRPC.MaxConcurrentStreams)),
	)
	server.RegisterGameServiceServer(grpcServer, server.NewGameServer(dispatcher, logger))

	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.GRPC.Address, err)
	}

	wsServer := server.NewWebSocketServer(cfg.Server.WebSocket, hub, dispatcher)

	g, gctx := errgroup.WithContext(ctx)

	// Start gRPC server
	g.Go(func() error {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	})

	// Start WebSocket server
	g.Go(func() error {
		logger.Info("starting WebSocket server",
			zap.String("address", cfg.Server.WebSocket.Address),
			zap.String("path", cfg.Server.WebSocket.Path),
		)
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("websocket server: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := wsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("websocket server shutdown", zap.Error(err))
		}
		grpcServer.GracefulStop()
		return nil
	})

	logger.Info("tycoon server initialized",
		zap.String("version", version),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
		zap.String("database_driver", cfg.Database.Driver),
	)

	return g.Wait()
}

// openStore selects the entity store named by the configuration.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (repository.Store, error) {
	if cfg.Driver != "postgres" {
		logger.Info("using in-memory store")
		return repository.NewMemoryStore(), nil
	}

	db, err := repository.NewDB(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	// Log database stats
	stats := db.Stats()
	logger.Info("database connection pool initialized",
		zap.Int32("total_conns", stats.TotalConns()),
		zap.Int32("idle_conns", stats.IdleConns()),
	)
	return repository.NewPostgresStore(db), nil
}

// initLogger builds the logger described by the logging section. Every
// entry carries the service name used for traces.
func initLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}

	var zapCfg zap.Config
	switch cfg.Logging.Format {
	case config.LogFormatJSON:
		zapCfg = zap.NewProductionConfig()
	default:
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.InitialFields = map[string]any{"service": cfg.Telemetry.ServiceName}

	return zapCfg.Build()
}
