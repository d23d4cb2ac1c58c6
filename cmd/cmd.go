package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sticker-album-backend/internal/config"
	"sticker-album-backend/internal/handlers"
	"sticker-album-backend/internal/jobs"
	"sticker-album-backend/internal/metrics"
	"sticker-album-backend/internal/middleware"
	"sticker-album-backend/internal/realtime"
	"sticker-album-backend/internal/repository"
	"sticker-album-backend/internal/services"
	"sticker-album-backend/internal/storage"
	"sticker-album-backend/internal/vision"
	"sticker-album-backend/internal/worker"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	albumRepo := repository.NewAlbumRepository(db)
	stickerRepo := repository.NewStickerRepository(db)
	userStickerRepo := repository.NewUserStickerRepository(db)
	friendRepo := repository.NewFriendRepository(db)
	chatRepo := repository.NewChatRepository(db)

	// Realtime hub, optionally backed by redis pub/sub
	hub := realtime.NewHub()
	layerCtx, stopLayer := context.WithCancel(context.Background())
	defer stopLayer()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(layerCtx).Err(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ping redis")
		}
		layer := realtime.NewRedisLayer(rdb, hub)
		hub.SetLayer(layer)
		go layer.Run(layerCtx)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis channel layer enabled")
	}

	// Initialize services
	accessTTL := time.Duration(cfg.JWT.AccessTTLMins) * time.Minute
	refreshTTL := time.Duration(cfg.JWT.RefreshTTLHours) * time.Hour
	userService := services.NewUserService(userRepo, cfg.JWT.Secret, accessTTL, refreshTTL)
	googleAuth := services.NewGoogleAuthenticator(cfg.OAuth, userRepo, userService)
	albumService := services.NewAlbumService(albumRepo, stickerRepo)
	friendService := services.NewFriendService(friendRepo, userRepo, hub)
	chatService := services.NewChatService(chatRepo, userRepo, friendService, hub)
	visionClient := vision.NewClient(cfg.Vision)
	if !visionClient.Enabled() {
		log.Warn().Msg("Vision validation disabled, submissions will be auto-approved")
	}
	unlockService := services.NewUnlockService(userStickerRepo, stickerRepo, albumRepo, userRepo, visionClient, hub)

	// Validation workers
	pool := worker.New(cfg.Worker, unlockService)
	unlockService.SetQueue(pool)
	pool.Start()
	defer pool.Stop()

	// Background jobs
	scheduler, err := jobs.NewScheduler(cfg.Jobs, unlockService)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create job scheduler")
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Photo storage
	photoStorage, err := storage.New(context.Background(), cfg.AWS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create photo storage")
	}
	unlockService.SetPhotoStorage(photoStorage)

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService, googleAuth)
	albumHandler := handlers.NewAlbumHandler(albumService)
	unlockHandler := handlers.NewUnlockHandler(unlockService)
	friendHandler := handlers.NewFriendHandler(friendService)
	chatHandler := handlers.NewChatHandler(chatService)
	uploadHandler := handlers.NewUploadHandler(photoStorage)
	wsHandler := handlers.NewWebSocketHandler(hub, userService, chatService, friendService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/register", userHandler.Register)
		r.Post("/auth/login", userHandler.Login)
		r.Post("/auth/refresh", userHandler.Refresh)
		r.Get("/auth/google", userHandler.GoogleLogin)
		r.Get("/auth/google/callback", userHandler.GoogleCallback)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))

			r.Get("/users/me", userHandler.Me)
			r.Patch("/users/me", userHandler.UpdateMe)
			r.Get("/users/me/stickers", unlockHandler.History)
			r.Get("/users", friendHandler.Members)
			r.Get("/users/{userID}", userHandler.GetUser)
			r.Get("/leaderboard", userHandler.Leaderboard)

			r.Get("/albums", albumHandler.ListAlbums)
			r.Get("/albums/{albumID}", albumHandler.GetAlbum)
			r.Get("/albums/{albumID}/stickers", albumHandler.ListStickers)
			r.Get("/albums/{albumID}/progress", unlockHandler.Progress)
			r.Post("/albums/{albumID}/match", unlockHandler.Match)
			r.Get("/stickers/{stickerID}", albumHandler.GetSticker)
			r.Post("/stickers/{stickerID}/unlock", unlockHandler.Submit)
			r.Post("/stickers/{stickerID}/message", unlockHandler.SetMessage)

			r.Post("/friends/requests", friendHandler.Request)
			r.Get("/friends/requests", friendHandler.List)
			r.Post("/friends/requests/{requestID}/accept", friendHandler.Accept)
			r.Post("/friends/requests/{requestID}/reject", friendHandler.Reject)
			r.Delete("/friends/requests/{requestID}", friendHandler.Cancel)
			r.Get("/friends", friendHandler.Friends)
			r.Delete("/friends/{requestID}", friendHandler.Remove)

			r.Get("/chat/{userID}/messages", chatHandler.History)
			r.Post("/chat/{userID}/messages", chatHandler.Send)

			r.Post("/uploads/presign", uploadHandler.Presign)

			// Admin-only catalog mutations
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin(userService))
				r.Post("/albums", albumHandler.CreateAlbum)
				r.Put("/albums/{albumID}", albumHandler.UpdateAlbum)
				r.Delete("/albums/{albumID}", albumHandler.DeleteAlbum)
				r.Post("/albums/{albumID}/stickers", albumHandler.CreateSticker)
				r.Put("/stickers/{stickerID}", albumHandler.UpdateSticker)
				r.Delete("/stickers/{stickerID}", albumHandler.DeleteSticker)
			})
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Prometheus metrics
	r.Handle("/metrics", metrics.Handler())

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
