package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/app"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/config"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle SIGINT/SIGTERM for graceful shutdown
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		cancel()
	}()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	cfg := config.LoadConfig()
	application, err := app.NewApp(ctx, cfg, sugar)
	if err != nil {
		sugar.Fatalw("startup failed", "err", err)
	}
	defer application.Close()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := application.Server.Shutdown(shutdownCtx); err != nil {
			sugar.Errorw("shutdown error", "err", err)
		}
	}()

	sugar.Infow("ingestion service running", "port", cfg.Port)
	application.Run(ctx, cfg.Workers)
}
