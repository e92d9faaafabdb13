package main

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/zewo/opsdash/handlers"
	"github.com/zewo/opsdash/internal/config"
	"github.com/zewo/opsdash/internal/database"
	"github.com/zewo/opsdash/internal/gate"
	"github.com/zewo/opsdash/internal/storage"
	"github.com/zewo/opsdash/internal/vault"
	vaulthandler "github.com/zewo/opsdash/internal/vault/handler"
	"github.com/zewo/opsdash/internal/vault/repository"
	"github.com/zewo/opsdash/internal/vault/service"
	"github.com/zewo/opsdash/pkg/logger"
	"github.com/zewo/opsdash/pkg/metrics"
	"github.com/zewo/opsdash/pkg/middleware"
	"github.com/zewo/opsdash/pkg/ratelimit"
)

var startTime = time.Now()

// largest content stored inline in a Mongo document, leaving room for metadata
const mongoInlineLimit = 15 << 20

func main() {
	// initialize logging (LOG_LEVEL: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)
	if cfg.Log.JSON {
		logger.SetOutput(os.Stdout, true)
		gin.SetMode(gin.ReleaseMode)
	}
	logger.Infof("config loaded: mongo=%v redis=%v minio=%v", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Endpoint != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis is optional: rate limiting, PIN throttling and session revocation fall back to memory
	var rdb *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s), using in-memory fallbacks: %v", addr, err)
			_ = rdb.Close()
			rdb = nil
		} else {
			logger.Infof("connected to Redis at %s", addr)
			defer rdb.Close()
		}
	}

	// item store
	var store vault.Store
	var mongoClient *mongo.Client
	if cfg.MongoDB.URI != "" {
		mongoClient, err = database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
		if err != nil {
			logger.Fatalf("could not connect to MongoDB: %v", err)
		}
		defer func() { _ = mongoClient.Disconnect(context.Background()) }()
		col := mongoClient.Database(cfg.MongoDB.Database).Collection(cfg.MongoDB.Collection)
		repo, err := repository.NewMongoRepo(ctx, col)
		if err != nil {
			logger.Fatalf("failed to initialize vault collection: %v", err)
		}
		store = repo
		logger.Infof("vault items stored in MongoDB %s.%s", cfg.MongoDB.Database, cfg.MongoDB.Collection)
	} else {
		store = repository.NewMemoryRepo()
		logger.Warnf("MONGODB_URI not set; vault items are kept in memory and lost on restart")
	}

	// blob store
	var blobs *storage.MinIOStorage
	if cfg.MinIO.Endpoint != "" {
		blobs, err = storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Fatalf("failed to initialize MinIO: %v", err)
		}
		logger.Infof("vault content stored in MinIO bucket %s", cfg.MinIO.Bucket)
	}

	maxUpload := cfg.Vault.MaxUploadBytes
	if mongoClient != nil && blobs == nil && maxUpload > mongoInlineLimit {
		logger.Warnf("content is stored inline in MongoDB; capping uploads at %d bytes (configure MinIO to lift this)", mongoInlineLimit)
		maxUpload = mongoInlineLimit
	}

	var pinLimiter vault.AttemptLimiter
	if rdb != nil {
		pinLimiter = ratelimit.NewRedis(rdb, "vault:", 0, cfg.Vault.PinAttempts, cfg.Vault.PinWindow)
	} else {
		pinLimiter = ratelimit.PerWindow(cfg.Vault.PinAttempts, cfg.Vault.PinWindow)
	}
	opts := service.Options{
		Limits: vault.NewLimits(maxUpload, cfg.Vault.ExtraKinds...),
		Guard:  vault.NewGuard(pinLimiter, 0),
	}
	if blobs != nil {
		opts.Blobs = blobs
	}
	vaultSvc := service.New(store, opts)

	// gate
	secret := []byte(cfg.Gate.Secret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			logger.Fatalf("failed to generate session secret: %v", err)
		}
	}
	var revoker gate.Revoker
	if rdb != nil {
		revoker = gate.NewRedisRevoker(rdb)
	}
	gateSvc, err := gate.New(gate.Options{
		Passphrase: cfg.Gate.Passphrase,
		Secret:     secret,
		TTL:        cfg.Gate.SessionTTL,
		Revoker:    revoker,
	})
	if err != nil {
		logger.Fatalf("failed to initialize gate: %v", err)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// rate limiting (per session subject when authenticated, otherwise per IP)
	var limit gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			limit = middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.Window)
		} else {
			limit = middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: 200 only when every configured dependency answers
	r.GET("/ready", func(c *gin.Context) {
		rctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		ready := true
		deps := map[string]bool{"store": true, "blobs": true, "redis": true}
		if mongoClient != nil {
			deps["store"] = mongoClient.Ping(rctx, readpref.Primary()) == nil
		}
		if blobs != nil {
			deps["blobs"] = blobs.Ping(rctx) == nil
		}
		if rdb != nil {
			deps["redis"] = rdb.Ping(rctx).Err() == nil
		}
		for _, ok := range deps {
			ready = ready && ok
		}
		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	handlers.RegisterSwagger(r)

	var loginGuards []gin.HandlerFunc
	if limit != nil {
		loginGuards = append(loginGuards, limit)
	}
	handlers.NewAuthHandler(gateSvc, cfg.Gate.CookieName, cfg.Server.IsProduction()).Register(r.Group("/"), loginGuards...)

	api := r.Group("/", middleware.AuthMiddleware(gateSvc, cfg.Gate.CookieName))
	if limit != nil {
		api.Use(limit)
	}
	vaulthandler.RegisterVaultRoutes(api, vaultSvc, maxUpload)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting opsdash on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}
