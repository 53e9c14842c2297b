package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"junks-backend/internal/auth"
	"junks-backend/internal/blob"
	"junks-backend/internal/cache"
	"junks-backend/internal/config"
	"junks-backend/internal/db"
	"junks-backend/internal/docstore"
	"junks-backend/internal/docstore/firestorestore"
	"junks-backend/internal/docstore/mongostore"
	"junks-backend/internal/handlers"
	"junks-backend/internal/icons"
	"junks-backend/internal/livequery"
	"junks-backend/internal/metrics"
	"junks-backend/internal/middleware"
	"junks-backend/internal/mutation"
	"junks-backend/internal/notifications"
	"junks-backend/internal/validation"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	m := metrics.New("junks")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Without a usable store the server still starts and answers 503 with
	// the remediation, so operators see what is missing.
	configErr := cfg.StoreConfigured()
	var store docstore.Store
	var verifier auth.IDTokenVerifier
	if configErr != nil {
		logger.Error("store not configured", slog.String("error", configErr.Error()))
	} else {
		switch cfg.StoreDriver {
		case config.StoreMemory:
			store = docstore.NewMemory()
			logger.Warn("using in-memory store, data is lost on restart")
		case config.StoreMongo:
			client, database, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
			if err != nil {
				logger.Error("mongo connection failed", slog.String("error", err.Error()))
				os.Exit(1)
			}
			logger.Info("mongo connected", slog.String("db", cfg.MongoDB))
			if err := db.EnsureIndexes(ctx, database); err != nil {
				logger.Error("index creation failed", slog.String("error", err.Error()))
				os.Exit(1)
			}
			store = mongostore.New(client, database)
		case config.StoreFirestore:
			// Firebase clients keep the context they are created with.
			app, err := firestorestore.NewApp(context.Background(), cfg.FirestoreProjectID, cfg.GoogleCredentials)
			if err != nil {
				logger.Error("firebase init failed", slog.String("error", err.Error()))
				os.Exit(1)
			}
			fs, err := firestorestore.New(context.Background(), app)
			if err != nil {
				logger.Error("firestore connection failed", slog.String("error", err.Error()))
				os.Exit(1)
			}
			store = fs
			fv, err := auth.NewFirebaseVerifier(context.Background(), app)
			if err != nil {
				logger.Warn("firebase sign-in disabled", slog.String("error", err.Error()))
			} else {
				verifier = fv
			}
			logger.Info("firestore connected", slog.String("project", cfg.FirestoreProjectID))
		}
	}

	var cacheStore cache.Cache = cache.NewNoop()
	if cfg.RedisURL != "" || cfg.RedisAddr != "" {
		var redisCache *cache.RedisCache
		var err error
		if cfg.RedisURL != "" {
			redisCache, err = cache.NewRedisFromURL(cfg.RedisURL)
		} else {
			redisCache = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		}
		if err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := redisCache.Ping(ctx); err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("redis connected")
		defer redisCache.Close()
		cacheStore = redisCache
	}

	var blobs blob.Store
	if cfg.BlobDriver == "s3" {
		s3Store, err := blob.NewS3(ctx, blob.S3Config{
			Region:          cfg.BlobS3Region,
			Bucket:          cfg.BlobS3Bucket,
			Endpoint:        cfg.BlobS3Endpoint,
			AccessKeyID:     cfg.BlobS3AccessKey,
			SecretAccessKey: cfg.BlobS3SecretKey,
			PathStyle:       cfg.BlobS3PathStyle,
			PublicBaseURL:   cfg.BlobPublicBaseURL,
		})
		if err != nil {
			logger.Error("blob store init failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("blob store enabled", slog.String("bucket", cfg.BlobS3Bucket))
		blobs = s3Store
	} else {
		blobs = blob.NewMemory(cfg.BlobPublicBaseURL)
		logger.Warn("using in-memory blob store")
	}

	var iconGen icons.Generator
	if gemini := icons.NewGeminiClient(cfg.IconsAPIKey, cfg.IconsModel); gemini != nil {
		iconGen = gemini
		logger.Info("icon generation enabled", slog.String("model", cfg.IconsModel))
	} else {
		logger.Info("icon generation disabled, using fallback icon")
	}
	iconService := icons.NewService(iconGen, icons.Options{
		Size:   cfg.IconsCacheSize,
		TTL:    time.Duration(cfg.IconsCacheTTLMinutes) * time.Minute,
		Shared: cacheStore,
	}, logger, m)

	var mailer handlers.BookingMailer
	if brevo := notifications.NewBrevoClient(cfg.BrevoAPIKey, cfg.BrevoSenderEmail, cfg.BrevoSenderName, cfg.BrevoSandbox); brevo != nil {
		mailer = brevo
		logger.Info("brevo mailer enabled", slog.String("sender", cfg.BrevoSenderEmail), slog.Bool("sandbox", cfg.BrevoSandbox))
	} else {
		logger.Info("brevo mailer disabled")
	}

	var jwtManager *auth.Manager
	if cfg.JWTSecret != "" {
		jwtManager = &auth.Manager{
			Secret:     []byte(cfg.JWTSecret),
			AccessTTL:  cfg.AccessTTL(),
			RefreshTTL: cfg.RefreshTTL(),
			Issuer:     "junks-backend",
		}
	}

	feed := notifications.NewFeed(logger)
	server := &handlers.Server{
		Cfg:       cfg,
		Store:     store,
		Live:      livequery.NewManager(store, logger, m),
		Mutations: mutation.NewDispatcher(store, feed, logger, m),
		Feed:      feed,
		Icons:     iconService,
		Uploader:  blob.NewUploader(blobs, logger, m),
		Mailer:    mailer,
		Val:       validation.New(),
		Log:       logger,
		Cache:     cacheStore,
		Auth:      jwtManager,
		Creds: auth.Credentials{
			User:         cfg.AdminUser,
			Password:     cfg.AdminPassword,
			PasswordHash: cfg.AdminPasswordHash,
		},
		Verifier: verifier,
		Metrics:  m,
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger, m))
	r.Use(middleware.CORS(cfg.FrontendOrigin))

	r.Get("/healthz", server.Health)
	r.Handle("/metrics", m.Handler())

	formsLimiter := middleware.NewRateLimiter(cfg.RateLimitForms, time.Duration(cfg.RateLimitWindowSec)*time.Second)
	routes := server.Routes(formsLimiter)
	mount := func(api chi.Router) {
		api.Use(middleware.RequireStore(configErr))
		routes(api)
	}

	// /api is kept for existing clients, /api/v1 is the versioned surface.
	r.Route("/api", mount)
	r.Route("/api/v1", mount)

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", slog.String("addr", cfg.ServerAddr), slog.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Event streams only end when told to, so Shutdown would otherwise wait
	// for every open client.
	srv.RegisterOnShutdown(server.StopStreams)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	if store != nil {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Error("store close error", slog.String("error", err.Error()))
		}
	}
}
