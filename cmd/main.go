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

	"github.com/Dosada05/chess-arena/brackets"
	"github.com/Dosada05/chess-arena/config"
	"github.com/Dosada05/chess-arena/db"
	"github.com/Dosada05/chess-arena/handlers"
	"github.com/Dosada05/chess-arena/middleware"
	"github.com/Dosada05/chess-arena/repositories"
	api "github.com/Dosada05/chess-arena/routes"
	"github.com/Dosada05/chess-arena/rules"
	"github.com/Dosada05/chess-arena/services"
	"github.com/Dosada05/chess-arena/storage"
	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("application exited")
}

func run() error {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Настройка логгера
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("draw_policy", cfg.DrawPolicy),
		slog.String("bye_policy", cfg.ByePolicy))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	if err := db.Migrate(dbConn); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	logger.Info("database connection established")

	archiver, err := newArchiver(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Инициализация WebSocket Hub
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	wsHub := brackets.NewHub(logger)
	go wsHub.Run(hubCtx)
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	matchRepo := repositories.NewMatchRepository(dbConn)
	tournamentRepo := repositories.NewTournamentRepository(dbConn)

	// Инициализация сервисов
	tournamentService := services.NewTournamentService(
		dbConn, // Pass dbConn for transaction management
		tournamentRepo,
		matchRepo,
		wsHub,
		archiver,
		services.TournamentOptions{
			DrawPolicy: services.DrawPolicy(cfg.DrawPolicy),
			ByePolicy:  services.ByePolicy(cfg.ByePolicy),
		},
		logger,
	)

	dispatcherCtx, stopDispatcher := context.WithCancel(context.Background())
	defer stopDispatcher()
	dispatcher := services.NewDispatcher(wsHub, tournamentService, 0, logger)
	dispatcherDone := make(chan struct{})
	go func() {
		dispatcher.Run(dispatcherCtx)
		close(dispatcherDone)
	}()

	matchService := services.NewMatchService(matchRepo, rules.NewEngine(), dispatcher, archiver, logger)
	tournamentService.SetMatchAborter(matchService)
	logger.Info("Services initialized")

	// Инициализация обработчиков HTTP
	matchHandler := handlers.NewMatchHandler(matchService)
	tournamentHandler := handlers.NewTournamentHandler(tournamentService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, matchService, tournamentService, cfg.AllowedOrigins(), logger)

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		middleware.NewAuthenticator(cfg.JWTSecretKey, logger),
		cfg.AllowedOrigins(),
		matchHandler,
		tournamentHandler,
		webSocketHandler,
	)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		}
	}

	// Сначала закрываем наблюдателей, потом дожидаемся очереди завершений.
	stopHub()
	stopDispatcher()
	<-dispatcherDone
	logger.Info("server shutdown complete")
	return nil
}

// newArchiver возвращает S3 архиватор или заглушку, если бакет не задан.
func newArchiver(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Archiver, error) {
	if !cfg.Archive.Enabled() {
		logger.Info("archiving disabled")
		return storage.NopArchiver{}, nil
	}
	uploader, err := storage.NewS3Uploader(ctx, storage.S3UploaderConfig{
		Endpoint:        cfg.Archive.Endpoint,
		Region:          cfg.Archive.Region,
		AccessKeyID:     cfg.Archive.AccessKeyID,
		SecretAccessKey: cfg.Archive.SecretAccessKey,
		BucketName:      cfg.Archive.Bucket,
		PublicBaseURL:   cfg.Archive.PublicBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize archive uploader: %w", err)
	}
	logger.Info("S3 archive uploader initialized", slog.String("bucket", cfg.Archive.Bucket))
	return storage.NewArchiver(uploader, logger), nil
}
