package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"pregnancy-guide-go/internal/api"
	"pregnancy-guide-go/internal/cache"
	"pregnancy-guide-go/internal/config"
	"pregnancy-guide-go/internal/content"
	"pregnancy-guide-go/internal/core"
	"pregnancy-guide-go/internal/db"
	"pregnancy-guide-go/internal/identity"
	"pregnancy-guide-go/internal/metrics"
	"pregnancy-guide-go/internal/middleware"
)

func main() {
	// Load .env file. In production, environment variables should be set directly.
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: Error loading .env file:", err)
		}
	}

	// --- 1. Initialize Logger (Zap) ---
	zapLogger, err := newLogger(os.Getenv("GIN_MODE"))
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()

	// --- 2. Load Application Configuration ---
	appConfig, err := config.LoadConfig()
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to load application configuration", zap.Error(err))
	}
	zapLogger.Info("Application configuration loaded", zap.String("profileStore", appConfig.ProfileStore))

	initCtx, cancelInitCtx := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInitCtx()

	// --- 3. Identity provider and profile repository ---
	var (
		provider identity.Provider
		profiles db.ProfileRepository
		clients  *db.Clients
	)
	if appConfig.UsesFirebase() {
		clients, err = db.InitFirebase(initCtx, appConfig, zapLogger)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firebase Admin SDK", zap.Error(err))
		}
		profiles, err = db.NewFirestoreProfileRepository(clients.Firestore)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to create profile repository", zap.Error(err))
		}
		provider, err = identity.NewFirebaseProvider(initCtx, appConfig.FirebaseWebAPIKey, clients.Auth, zapLogger)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to create identity provider", zap.Error(err))
		}
	} else {
		zapLogger.Warn("Using in-memory identity and profile storage; data is lost on restart")
		provider = identity.NewMemoryProvider()
		profiles = db.NewMemoryProfileRepository()
	}

	// --- 4. Content catalog ---
	var catalogCache cache.Cache = cache.NewMemoryCache()
	if appConfig.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(initCtx, cache.RedisConfig{
			Address:  appConfig.RedisAddr,
			Password: appConfig.RedisPassword,
			DB:       appConfig.RedisDB,
		}, zapLogger)
		if err != nil {
			zapLogger.Warn("Redis unavailable, caching the catalog in memory", zap.Error(err))
		} else {
			defer redisCache.Close()
			catalogCache = redisCache
		}
	}
	catalog := content.NewCatalog(appConfig.ArticlesFile, catalogCache, appConfig.CatalogCacheTTL, zapLogger)

	// --- 5. Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// --- 6. Client state store ---
	store := core.NewStore(core.Options{
		Session:           identity.NewAdapter(provider, zapLogger),
		Profiles:          profiles,
		Logger:            zapLogger,
		Metrics:           collector,
		ChecklistDebounce: appConfig.ChecklistDebounce,
		RemoteTimeout:     appConfig.RemoteTimeout,
	})
	if err := store.Start(); err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to start state store", zap.Error(err))
	}

	// --- 7. Setup Gin HTTP Engine ---
	if strings.ToLower(appConfig.GinMode) == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware(appConfig.ClientURL))

	authLimiter := middleware.NewRateLimiter(appConfig.AuthRateLimit, appConfig.AuthRateBurst, 10*time.Minute, zapLogger)

	api.SetupRoutes(router, api.RouteDeps{
		Store:       store,
		Catalog:     catalog,
		Logger:      zapLogger,
		AuthLimiter: authLimiter,
		Gatherer:    registry,
	})

	// --- 8. Configure and Start HTTP Server ---
	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	zapLogger.Info("Starting HTTP server...", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// --- 9. Graceful Shutdown Handling ---
	quitChannel := make(chan os.Signal, 1)
	signal.Notify(quitChannel, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quitChannel
	zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	// Pending checklist edits are written before the profile connection goes away.
	if err := store.Close(shutdownCtx); err != nil {
		zapLogger.Error("State store did not flush cleanly", zap.Error(err))
	}
	if err := clients.Close(); err != nil {
		zapLogger.Warn("Closing Firestore client failed", zap.Error(err))
	}

	zapLogger.Info("Server exiting gracefully.")
}

func newLogger(ginMode string) (*zap.Logger, error) {
	if strings.ToLower(ginMode) == "release" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
