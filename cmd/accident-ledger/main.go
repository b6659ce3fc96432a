package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mr1hm/go-accident-alerts/internal/api"
	"github.com/mr1hm/go-accident-alerts/internal/config"
	internalgrpc "github.com/mr1hm/go-accident-alerts/internal/grpc"
	"github.com/mr1hm/go-accident-alerts/internal/ingestion"
	"github.com/mr1hm/go-accident-alerts/internal/ledger"
	"github.com/mr1hm/go-accident-alerts/internal/logging"
	"github.com/mr1hm/go-accident-alerts/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Ledger starting", "host", cfg.Server.Host, "port", cfg.Server.Port,
		"capacity", cfg.Ledger.Capacity, "assign_ids", cfg.Ledger.AssignIDs, "strict", cfg.Ledger.Strict)

	l := ledger.New(ledger.Options{
		Capacity:   cfg.Ledger.Capacity,
		AssignIDs:  cfg.Ledger.AssignIDs,
		Strict:     cfg.Ledger.Strict,
		TimeFormat: cfg.Ledger.TimeFormat,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Archive writes outlive the ingest context so the queue can drain.
	archiveCtx, archiveCancel := context.WithCancel(context.Background())
	defer archiveCancel()

	var (
		archive  repository.Archive
		archiver *repository.Archiver
	)
	if cfg.Archive.Enabled {
		archive, err = repository.NewArchive(ctx, cfg.Archive)
		if err != nil {
			logging.Fatalf("Failed to initialize archive: %v", err)
		}
		archiver = repository.NewArchiver(archive, cfg.Archive.Workers, cfg.Archive.BufferSize)
		archiver.Start(archiveCtx)
		l.OnAppend(archiver.Hook())
		slog.Info("archive enabled", "driver", cfg.Archive.Driver)
	}

	var grpcServer *internalgrpc.Server
	if cfg.GRPC.Enabled {
		broadcaster := internalgrpc.NewBroadcaster()
		l.OnAppend(broadcaster.Hook())

		grpcServer = internalgrpc.NewServer(l, broadcaster)
		go func() {
			grpcAddr := fmt.Sprintf(":%d", cfg.GRPC.Port)
			if err := grpcServer.Start(grpcAddr); err != nil {
				logging.Fatalf("gRPC server error: %v", err)
			}
		}()
	}

	mgr := ingestion.NewManager(cfg.Kafka, l)
	mgr.Start(ctx)

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))

	handler := api.NewHandler(l, archive, cfg.Map)
	handler.RegisterRoutes(router, api.RateLimitMiddleware(cfg.RateLimit.IngestRPS))

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	mgr.Stop()
	if grpcServer != nil {
		grpcServer.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	l.Close()
	if archiver != nil {
		archiver.Stop()
		if err := archive.Close(); err != nil {
			slog.Error("archive close error", "error", err)
		}
	}

	slog.Info("shutdown complete", "alerts", l.Len())
}
