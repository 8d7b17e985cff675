package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mirror_go/internal/adapters"
	"mirror_go/internal/bootstrap"
	"mirror_go/internal/delivery/debug"
	"mirror_go/internal/delivery/gtp"
	"mirror_go/internal/delivery/health"
	"mirror_go/internal/repository"
	"mirror_go/internal/usecase/mirror"
)

type sideServers struct {
	debug  *http.Server
	health *health.HealthService
	redis  *adapters.AdapterRedis
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := bootstrap.Setup(".env", os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		NewLogger("error").Errorw("Failed to setup configuration", "error", err)
		return 2
	}
	logger := NewLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := repository.NewKatagoClient(cfg, logger)
	if err != nil {
		logger.Errorw("Failed to start engine", "path", cfg.EnginePath, "error", err)
		return 1
	}
	if err := engine.CheckReady(); err != nil {
		logger.Errorw("Engine is not usable", "error", err)
		_ = engine.Close()
		return 1
	}

	servers := &sideServers{}
	var publisher repository.DecisionPublisher
	if cfg.RedisUrl != "" {
		servers.redis = adapters.NewAdapterRedis(cfg, logger)
		if err := servers.redis.Init(ctx); err != nil {
			logger.Warnw("Decisions will not be published", "error", err)
		} else {
			publisher = servers.redis
		}
	}

	journal := repository.NewDecisionRepository(cfg, logger, publisher)
	mirrorUC := mirror.NewMirrorUseCase(cfg, logger, engine, journal)
	handler := gtp.NewGtpHandler(logger, engine, mirrorUC)

	startSideServers(cfg, logger, engine, journal, servers)

	// closeEngine is Close from the GTP loop and Terminate from the signal
	// handler, which must not touch the pipes the loop may be using.
	var once sync.Once
	shutdown := func(closeEngine func() error) {
		once.Do(func() {
			cancel()
			servers.stop(logger)
			if err := closeEngine(); err != nil {
				logger.Warnw("Failed to close engine", "error", err)
			}
		})
	}
	go handleShutdown(func() { shutdown(engine.Terminate) }, logger)

	logger.Infow("Mirror bot is ready", "engine", cfg.EnginePath, "threshold", cfg.MirrorThreshold)
	err = handler.Serve(ctx, os.Stdin, os.Stdout)
	shutdown(engine.Close)
	if err != nil {
		logger.Errorw("GTP session failed", "error", err)
		return 1
	}
	return 0
}

func NewLogger(level string) *zap.SugaredLogger {
	zapCfg := zap.NewProductionConfig()
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := zapCfg.Build()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	return logger.Sugar()
}

func startSideServers(cfg *bootstrap.Config, log *zap.SugaredLogger, engine *repository.KatagoClient, journal *repository.DecisionRepository, servers *sideServers) {
	if cfg.DebugAddr != "" {
		servers.debug = &http.Server{
			Addr:              cfg.DebugAddr,
			Handler:           debug.NewDebugHandler(log, engine, journal).Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Infof("Debug server is running on %s", cfg.DebugAddr)
			if err := servers.debug.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("Debug server stopped", "error", err)
			}
		}()
	}

	if cfg.GrpcAddr != "" {
		lis, err := net.Listen("tcp", cfg.GrpcAddr)
		if err != nil {
			log.Errorw("Failed to listen for gRPC health", "addr", cfg.GrpcAddr, "error", err)
			return
		}
		servers.health = health.NewHealthService(log)
		servers.health.Watch(engine.Done())
		go func() {
			if err := servers.health.Serve(lis); err != nil {
				log.Errorw("gRPC health service stopped", "error", err)
			}
		}()
	}
}

func (s *sideServers) stop(log *zap.SugaredLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if s.debug != nil {
		if err := s.debug.Shutdown(ctx); err != nil {
			log.Warnw("Debug server shutdown", "error", err)
		}
	}
	if s.health != nil {
		s.health.Stop()
	}
	if s.redis != nil {
		_ = s.redis.Close(ctx)
	}
}

// handleShutdown tears everything down on SIGINT/SIGTERM. The GTP loop is
// blocked on stdin, so the process exits from here.
func handleShutdown(shutdown func(), log *zap.SugaredLogger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	log.Infow("Received shutdown signal", "signal", sig.String())
	shutdown()
	_ = log.Sync()
	os.Exit(1)
}
