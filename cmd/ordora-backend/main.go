// 開発用バックエンドのエントリポイント。
// ストアフロントAPIと同じHTTP契約をメモリ上のデータで提供する。
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Olatundeawo/ordora/internal/backend"
	"github.com/Olatundeawo/ordora/internal/config"
	"github.com/Olatundeawo/ordora/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "設定ファイルのパス")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Env == logging.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server, err := backend.NewServer(cfg.Backend.Port, backend.Options{
		JWTSecret:      cfg.Backend.JWTSecret,
		AccessTTL:      cfg.Backend.AccessTTL,
		RefreshTTL:     cfg.Backend.RefreshTTL,
		AllowedOrigins: cfg.Backend.AllowedOrigins,
		WebhookSecret:  cfg.Backend.WebhookSecret,
		Logger:         logger,
	})
	if err != nil {
		logger.Error("[Backend] サーバーの初期化に失敗しました", zap.Error(err))
		os.Exit(1)
	}

	if err := server.Run(ctx); err != nil {
		logger.Error("[Backend] サーバーが異常終了しました", zap.Error(err))
		os.Exit(1)
	}
}
