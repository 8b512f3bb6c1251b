package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cruz-jay/beatbot/config"
	"github.com/cruz-jay/beatbot/core/auth"
	"github.com/cruz-jay/beatbot/core/synthesis"
	"github.com/cruz-jay/beatbot/db"
	"github.com/cruz-jay/beatbot/logger"
	"github.com/cruz-jay/beatbot/repository"
	"github.com/cruz-jay/beatbot/storage"

	"github.com/gorilla/mux"
)

// Start initializes dependencies and runs the HTTP server until a
// shutdown signal arrives.
func Start() {
	cfg := config.Load()

	logger.Init(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("failed to connect to database with GORM", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	if err := db.InitDB(); err != nil {
		logger.Fatal("failed to initialize database", logger.ErrorField(err))
	}

	// Redis is a cache, not a dependency; run without it if down.
	if err := db.ConnectRedis(cfg); err != nil {
		logger.Warn("Redis unavailable, track list caching disabled", logger.ErrorField(err))
	} else {
		defer db.CloseRedis()
		logger.Info("connected to Redis")
	}

	// Object storage is optional; without it completed tracks carry
	// inline data URIs.
	var store synthesis.AudioStore
	if cfg.MinioEndpoint != "" {
		minioStore, err := storage.New(cfg)
		if err != nil {
			logger.Warn("MinIO unavailable, storing audio inline", logger.ErrorField(err))
		} else {
			store = minioStore
			logger.Info("connected to MinIO", logger.String("bucket", cfg.MinioBucket))
		}
	}

	userRepo := repository.NewMySQLUserRepository(db.DB)
	trackRepo := repository.NewMySQLTrackRepository(db.DB)
	quotaRepo := repository.NewGormQuotaRepository(db.GormDB, cfg.MaxTracks)

	client := synthesis.NewClient(synthesis.ClientConfig{
		APIURL:         cfg.SynthAPIURL,
		APIToken:       cfg.SynthAPIToken,
		Model:          cfg.SynthModel,
		Duration:       cfg.SynthDuration,
		AttemptTimeout: cfg.SynthAttemptTimeout,
	})
	orchestrator := synthesis.NewOrchestrator(client, userRepo, trackRepo, quotaRepo, store, synthesis.BackoffPolicy{
		MaxRetries: cfg.SynthMaxRetries,
		Base:       cfg.SynthBackoffBase,
		Cap:        cfg.SynthBackoffCap,
	})

	tokens := auth.NewTokenIssuer(cfg.JWTSecret)
	apiHandler := NewAPIHandler(userRepo, trackRepo, quotaRepo, orchestrator, tokens, cfg)

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/api/health", apiHandler.HealthHandler).Methods(http.MethodGet)

	router.HandleFunc("/api/auth/register", apiHandler.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)

	router.HandleFunc("/api/generate-music", apiHandler.AuthMiddleware(apiHandler.GenerateMusicHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks", apiHandler.AuthMiddleware(apiHandler.GetTracksHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}", apiHandler.AuthMiddleware(apiHandler.GetTrackHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}", apiHandler.AuthMiddleware(apiHandler.DeleteTrackHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/quota", apiHandler.AuthMiddleware(apiHandler.GetQuotaHandler)).Methods(http.MethodGet)

	server := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: router,
		// Generation requests block on the provider retry loop, so
		// the write timeout has to outlast the worst case.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("server stopped")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
