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

	"github.com/abimbolaoige/kfm-counsel-chat/internal/analysis/safety"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/config"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/handler"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/identity"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/model/assessment"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/service/ai"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/service/counsel"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/storage/docstore"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/storage/kv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	local, err := kv.NewSQLiteStore(cfg.Storage.LocalPath)
	if err != nil {
		log.Fatalf("failed to open local store: %v", err)
	}
	defer local.Close()

	// Remote 必须保持 nil 接口，成员会话据此报告未配置
	var remote docstore.Store
	if cfg.Storage.Redis.Enabled() {
		redisStore, err := docstore.Dial(ctx, cfg.Storage.Redis)
		if err != nil {
			log.Printf("warning: failed to connect to redis: %v", err)
			log.Println("continuing without remote persistence")
		} else {
			defer redisStore.Close()
			remote = redisStore
			log.Printf("remote store connected at %s", cfg.Storage.Redis.Addr)
		}
	} else {
		log.Println("REDIS_ADDR 未配置，成员会话将不会持久化")
	}

	var sender ai.Sender = ai.Unavailable{}
	if cfg.AI.Enabled() {
		svc, err := ai.NewFromConfig(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI functionality - 请检查 Ark 模型相关环境变量")
		} else {
			sender = svc
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("Ark 凭证未配置，跳过 AI 功能初始化")
	}

	var verifier *identity.Verifier
	if cfg.Auth.Enabled() {
		verifier = identity.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	} else {
		log.Println("JWT_SECRET 未配置，所有请求按访客处理")
	}

	conversations := counsel.NewManager(counsel.NewFactory(counsel.Deps{
		Local:        local,
		Remote:       remote,
		Model:        sender,
		Detector:     safety.Scanner{},
		HistoryLimit: cfg.AI.HistoryLimit,
	}))
	defer conversations.Close()

	router := handler.NewRouter(conversations, assessment.NewMemoryStore(assessment.Seed()), verifier)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("KFM Counsel backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Printf("server error: %v", err)
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
