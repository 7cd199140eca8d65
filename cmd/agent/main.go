package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tikops/tikops-agent/internal/api"
	"github.com/tikops/tikops-agent/internal/catalog"
	"github.com/tikops/tikops-agent/internal/config"
	"github.com/tikops/tikops-agent/internal/copywriter"
	"github.com/tikops/tikops-agent/internal/db"
	"github.com/tikops/tikops-agent/internal/factory"
	"github.com/tikops/tikops-agent/internal/ffmpeg"
	"github.com/tikops/tikops-agent/internal/logging"
	"github.com/tikops/tikops-agent/internal/share"
	"github.com/tikops/tikops-agent/internal/ui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.OutputDir(), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting tikops agent", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := catalog.NewRepository(database.Conn())

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                     TIKOPS AGENT v0.1.0                   ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	tools, err := ffmpeg.Resolve(cfg.FFmpegPath(), cfg.FFprobePath())
	if err != nil {
		return fmt.Errorf("failed to locate ffmpeg tools: %w", err)
	}
	logger.Info("media tools resolved", "ffmpeg", tools.FFmpeg, "ffprobe", tools.FFprobe)

	execRunner := ffmpeg.NewExecRunner(logger)
	executor := ffmpeg.NewExecutor(tools, execRunner, cfg.TempDir(), logger)
	prober := ffmpeg.NewProber(tools, execRunner)

	catalogSvc := catalog.NewService(repo, prober, logger)

	planner := factory.NewRandomSpeedPlanner(time.Now().UnixNano())
	processor := factory.NewProcessor(executor, prober, planner, logger)

	runner := factory.NewRunner(repo, processor, executor, cfg.OutputDir(), logger)

	copyClient := copywriter.NewClient(cfg.AIBaseURL(), cfg.AIAPIKey(), cfg.AIModel(), logger)
	shareSrv := share.NewServer(cfg.SharePort(), cfg.OutputDir(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		OutputDir:      cfg.OutputDir(),
		CatalogService: catalogSvc,
		Repository:     repo,
		Runner:         runner,
		Copywriter:     copyClient,
		Share:          shareSrv,
		Logger:         logger,
		StartTime:      startTime,
		DeviceID:       deviceID,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	tray := ui.NewTray(ui.TrayConfig{
		CatalogService: catalogSvc,
		Runner:         runner,
		ShareServer:    shareSrv,
		Logger:         logger,
		OnQuit: func() {
			close(quitCh)
		},
	})
	runner.Sink = func(ev factory.ProgressEvent) {
		if ev.Status == factory.EventSummary {
			tray.UpdateStatus(fmt.Sprintf("Done: %d ok, %d failed", ev.Ok, ev.Failed))
			return
		}
		tray.UpdateStatus(fmt.Sprintf("Processing %d/%d (%d%%)", ev.Index, ev.Total, ev.Percent))
	}
	go tray.Run()

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	if shareSrv.IsRunning() {
		if err := shareSrv.Stop(shutdownCtx); err != nil {
			logger.Error("failed to stop share server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureDeviceID(repo catalog.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "device_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	deviceID := hex.EncodeToString(idBytes)

	if err := repo.SetConfig(ctx, "device_id", deviceID); err != nil {
		return "", err
	}

	return deviceID, nil
}

func ensureAuthToken(repo catalog.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
