package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/chess-cup/config"
	"github.com/Dosada05/chess-cup/db"
	"github.com/Dosada05/chess-cup/handlers"
	"github.com/Dosada05/chess-cup/realtime"
	"github.com/Dosada05/chess-cup/repositories"
	api "github.com/Dosada05/chess-cup/routes"
	"github.com/Dosada05/chess-cup/services"
	"github.com/Dosada05/chess-cup/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.Bool("autosave", cfg.Autosave))

	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	var tournamentRepo repositories.TournamentRepository
	if cfg.DatabaseURL == "" {
		tournamentRepo = repositories.NewMemoryTournamentRepository()
		logger.Warn("DATABASE_URL not set, tournaments are kept in memory only")
	} else {
		dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second, logger)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := dbConn.Close(); err != nil {
				logger.Error("failed to close database connection", slog.Any("error", err))
			} else {
				logger.Info("database connection closed")
			}
		}()
		if err := db.EnsureSchema(appCtx, dbConn); err != nil {
			logger.Error("failed to prepare database schema", slog.Any("error", err))
			os.Exit(1)
		}
		tournamentRepo = repositories.NewPostgresTournamentRepository(dbConn)
		logger.Info("database connection established")
	}

	var archiver services.SnapshotArchiver
	r2Config := storage.CloudflareR2Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	}
	if r2Config.Enabled() {
		store, err := storage.NewCloudflareR2Store(appCtx, r2Config)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 archive", slog.Any("error", err))
			os.Exit(1)
		}
		archiver = storage.NewSnapshotArchiver(store)
		logger.Info("Cloudflare R2 snapshot archive enabled", slog.String("bucket", cfg.R2BucketName))
	}

	wsHub := realtime.NewHub(logger)
	go wsHub.Run(appCtx)

	tournamentService, err := services.NewTournamentService(
		tournamentRepo,
		archiver,
		wsHub,
		services.TournamentServiceConfig{
			MinPlayers:          cfg.MinPlayers,
			PlayersPerGroup:     cfg.PlayersPerGroup,
			DefaultTotalPlayers: cfg.DefaultTotalPlayers,
			Autosave:            cfg.Autosave,
			SaveTimeout:         cfg.SaveTimeout,
		},
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize tournament service", slog.Any("error", err))
		os.Exit(1)
	}

	loadCtx, cancelLoad := context.WithTimeout(appCtx, cfg.SaveTimeout)
	if _, err := tournamentService.LoadCurrent(loadCtx); err != nil {
		logger.Error("failed to restore current tournament, starting fresh", slog.Any("error", err))
	}
	cancelLoad()

	tournamentHandler := handlers.NewTournamentHandler(tournamentService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, tournamentService, cfg.CORSAllowedOrigins, logger)

	router := chi.NewRouter()
	api.SetupRoutes(router, cfg.CORSAllowedOrigins, tournamentHandler, webSocketHandler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		} else {
			logger.Info("server shutdown complete")
		}
	}

	stopApp()
	tournamentService.Wait()
	logger.Info("application exited")
}
