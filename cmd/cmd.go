package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photo-frame-portal/internal/config"
	"photo-frame-portal/internal/eventbus"
	"photo-frame-portal/internal/handlers"
	"photo-frame-portal/internal/imaging"
	"photo-frame-portal/internal/middleware"
	"photo-frame-portal/internal/repository"
	"photo-frame-portal/internal/services"
	"photo-frame-portal/internal/storage"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	path := os.Getenv("PORTAL_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	ctx := context.Background()

	// Connect to database
	db, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	if cfg.Database.Migrate {
		if err := repository.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply schema")
		}
		log.Info().Msg("Database schema applied")
	}

	// Live feed, fanned out through Redis when configured
	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid redis url")
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ping redis")
		}
		defer rdb.Close()
		log.Info().Msg("Redis connection established")
	}
	bus := eventbus.New(rdb)

	// Object storage
	store, err := storage.NewS3Store(ctx, storage.Options{
		Region:        cfg.AWS.Region,
		Bucket:        cfg.AWS.S3Bucket,
		AccessKey:     cfg.AWS.AccessKey,
		SecretKey:     cfg.AWS.SecretKey,
		Endpoint:      cfg.AWS.Endpoint,
		PublicBaseURL: cfg.AWS.PublicBaseURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create object store")
	}

	converter := imaging.NewExecConverter(cfg.Imaging.HEICConverter)
	if !converter.Available() {
		log.Warn().Str("binary", cfg.Imaging.HEICConverter).Msg("HEIC converter not found, HEIC uploads will fail")
	}

	var notifier services.Notifier
	if cfg.APNs.KeyFile != "" {
		apns, err := services.NewAPNsNotifier(services.APNsConfig{
			KeyFile:    cfg.APNs.KeyFile,
			KeyID:      cfg.APNs.KeyID,
			TeamID:     cfg.APNs.TeamID,
			Topic:      cfg.APNs.Topic,
			Production: cfg.APNs.Production,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create APNs client")
		}
		notifier = apns
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	pairRepo := repository.NewPairRepository(db)
	photoRepo := repository.NewPhotoRepository(db)
	eventRepo := repository.NewEventRepository(db)

	// Initialize services
	userService := services.NewUserService(userRepo, cfg.JWT.Secret)
	pairService := services.NewPairService(pairRepo)
	photoService := services.NewPhotoService(photoRepo, store, imaging.NewPreprocessor(converter), bus)
	eventService := services.NewEventService(eventRepo, pairRepo, bus, bus, notifier)

	r := newRouter(routerDeps{
		users:     userService,
		pairs:     pairService,
		photos:    photoService,
		events:    eventService,
		feed:      bus,
		limiter:   middleware.NewRateLimiter(cfg.Events.RatePerSecond, cfg.Events.Burst),
		maxUpload: cfg.Server.MaxUploadBytes,
	})

	// Create HTTP server; no WriteTimeout so WebSocket connections stay open
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// releasing subscribers ends every WebSocket handler
	bus.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	eventService.Wait()

	log.Info().Msg("Server exited")
}

type routerDeps struct {
	users     *services.UserService
	pairs     *services.PairService
	photos    handlers.PhotoManager
	events    handlers.EventPublisher
	feed      handlers.Feed
	limiter   *middleware.RateLimiter
	maxUpload int64
}

func newRouter(d routerDeps) http.Handler {
	userHandler := handlers.NewUserHandler(d.users, d.pairs)
	pairHandler := handlers.NewPairHandler(d.pairs)
	photoHandler := handlers.NewPhotoHandler(d.photos, d.maxUpload)
	eventHandler := handlers.NewEventHandler(d.events)
	wsHandler := handlers.NewWebSocketHandler(d.feed, d.users, d.pairs, d.events)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/healthz", handlers.Health)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/signup", userHandler.SignUp)
		r.Post("/auth/login", userHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(d.users))
			r.Get("/me", userHandler.Me)
			r.Put("/me/push-token", userHandler.UpdatePushToken)
			r.Post("/pairs", pairHandler.CreatePair)
			r.Post("/pairs/join", pairHandler.JoinPair)
			r.Get("/pairs/current", pairHandler.GetCurrentPair)

			// Paired routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePair(d.pairs))
				r.Get("/photos", photoHandler.GetPhotos)
				r.Post("/photos", photoHandler.UploadPhotos)
				r.Delete("/photos/{photo_id}", photoHandler.DeletePhoto)
				r.Get("/events", eventHandler.ListEvents)
				r.With(d.limiter.Handler).Post("/events", eventHandler.PublishEvent)
			})
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	return r
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
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
