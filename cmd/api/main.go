package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/poem-tavern/backend/internal/config"
	"github.com/zhouzirui/poem-tavern/backend/internal/handler"
	"github.com/zhouzirui/poem-tavern/backend/internal/logging"
	"github.com/zhouzirui/poem-tavern/backend/internal/model/persona"
	poemsvc "github.com/zhouzirui/poem-tavern/backend/internal/service/poem"
	"github.com/zhouzirui/poem-tavern/backend/internal/service/speech"
	"github.com/zhouzirui/poem-tavern/backend/internal/service/upstream"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 加载 .env 文件
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, flush, err := logging.Install(cfg.Environment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer flush()

	if envErr != nil {
		logger.Info("no .env file loaded, using system environment only", zap.Error(envErr))
	}

	poet := persona.Default()

	// 初始化诗歌服务
	var poemService *poemsvc.Service
	if cfg.Poem.Enabled() {
		generator, err := upstream.New(ctx, cfg.Poem)
		if err != nil {
			logger.Warn("failed to initialize upstream provider, generate-poem will answer 503",
				zap.String("provider", cfg.Poem.Provider), zap.Error(err))
		} else {
			poemService = poemsvc.NewService(generator, poet, cfg.Poem.Timeout, logger)
			logger.Info("poem service initialized",
				zap.String("provider", generator.Name()),
				zap.String("model", generator.Model()),
				zap.String("apiKeyPrefix", cfg.Poem.KeyPrefix()))
		}
	} else {
		logger.Warn("upstream credentials not configured, skipping poem service", zap.String("provider", cfg.Poem.Provider))
	}

	// 初始化语音服务
	var speechService *speech.Service
	if cfg.Speech.Enabled {
		speechService = speech.NewService(cfg.Speech.Model(), logger)
		logger.Info("speech service initialized")
	} else {
		logger.Info("语音服务凭证未配置，跳过语音功能初始化")
	}

	router := handler.NewRouter(handler.Dependencies{
		Config: cfg,
		Poem:   poemService,
		Speech: speechService,
		Poet:   poet,
		Logger: logger,
	})

	startServer(ctx, logger, cfg.Server, router)
}

func startServer(ctx context.Context, logger *zap.Logger, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("poem tavern backend listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
