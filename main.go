package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/signflow/signflow-server/handlers"
	"github.com/signflow/signflow-server/internal/auth"
	"github.com/signflow/signflow-server/internal/config"
	"github.com/signflow/signflow-server/internal/database"
	"github.com/signflow/signflow-server/internal/document"
	"github.com/signflow/signflow-server/internal/document/handler"
	"github.com/signflow/signflow-server/internal/document/repository"
	"github.com/signflow/signflow-server/internal/document/service"
	"github.com/signflow/signflow-server/internal/notify"
	"github.com/signflow/signflow-server/internal/oidc"
	"github.com/signflow/signflow-server/internal/pdf"
	"github.com/signflow/signflow-server/internal/sessions"
	"github.com/signflow/signflow-server/internal/storage"
	"github.com/signflow/signflow-server/internal/users"
	"github.com/signflow/signflow-server/pkg/logger"
	"github.com/signflow/signflow-server/pkg/metrics"
	"github.com/signflow/signflow-server/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.UseJSON(strings.EqualFold(os.Getenv("LOG_FORMAT"), "json"))
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: redis=%v smtp=%v minio=%v google=%v", cfg.Redis.Host != "", cfg.SMTP.Host != "", cfg.MinIO.Endpoint != "", cfg.Google.ClientID != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The document store is required; the process exits when it is unreachable.
	client, err := database.ConnectWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
	if err != nil {
		logger.Fatalf("mongo: %v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()
	db := client.Database(cfg.MongoDB.Database)
	logger.Infof("connected to MongoDB database %s", cfg.MongoDB.Database)

	docRepo := repository.NewMongoRepo(db.Collection(cfg.MongoDB.DocsCollection))
	userRepo := users.NewMongoUserRepository(db.Collection(cfg.MongoDB.UsersCollection))
	for name, ensure := range map[string]func(context.Context) error{
		"docs":  docRepo.EnsureIndexes,
		"users": userRepo.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			logger.Warnf("ensure %s indexes: %v", name, err)
		}
	}

	userSvc := users.NewService(userRepo)
	if created, err := userSvc.EnsureDefaultAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		logger.Errorf("seed admin: %v", err)
	} else if created {
		logger.Infof("created default admin %s", cfg.Admin.Email)
	}

	// Redis is optional: sessions, the access token blacklist and the shared
	// rate limiter use it when reachable.
	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			_ = rdb.Close()
			rdb = nil
		} else {
			defer func() { _ = rdb.Close() }()
			logger.Infof("connected to Redis %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	var sessionsSvc *sessions.Service
	if rdb != nil {
		sessionsSvc = sessions.NewService(sessions.NewRedisRepository(rdb, ""))
		logger.Infof("using Redis for session storage")
	} else {
		srepo := sessions.NewMongoRepository(db.Collection("sessions"))
		if err := srepo.EnsureIndexes(ctx); err != nil {
			logger.Warnf("ensure sessions indexes: %v", err)
		}
		sessionsSvc = sessions.NewService(srepo)
	}
	blacklist := sessions.NewBlacklist(rdb)
	gate := auth.NewGate(cfg, userSvc, blacklist)

	docSvc := service.New(docRepo, pdf.NewRenderer(), notify.New(cfg.SMTP), service.Options{
		FrontendURL:        cfg.Server.FrontendURL,
		DefaultAgencyEmail: cfg.Signing.DefaultAgencyEmail,
		StrictToken:        cfg.Signing.StrictToken,
	})
	var archive *storage.MinIOStorage
	if cfg.MinIO.Endpoint != "" {
		archive, err = storage.NewMinIOStorage(cfg.MinIO)
		if err == nil {
			err = archive.EnsureBucket(ctx)
		}
		if err != nil {
			logger.Warnf("signed PDF archive disabled: %v", err)
			archive = nil
		} else {
			docSvc.WithArchiver(archive)
			logger.Infof("archiving signed PDFs to bucket %s", cfg.MinIO.Bucket)
		}
	}

	var google *oidc.Google
	if cfg.Google.ClientID != "" {
		google, err = oidc.NewGoogle(ctx, cfg.Google)
		if err != nil {
			logger.Warnf("Google sign-in disabled: %v", err)
			google = nil
		}
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger.L()))
	r.Use(cors(cfg.Server.FrontendURL))
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/ready", readiness(readyDeps{cfg: cfg, mongo: client, redis: rdb, archive: archive, docs: docRepo, users: userRepo}))

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterSwagger(r)

	authMW := middleware.AuthMiddleware(gate)
	api := r.Group("/api")
	handlers.NewAuthHandler(cfg, userSvc, sessionsSvc, blacklist, docSvc, google).
		Register(api, authMW, middleware.OptionalAuth(gate))
	handlers.NewUsersHandler(userSvc).Register(api, authMW)
	handler.RegisterDocumentRoutes(api, docSvc, authMW)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("signflow listening on %s", srv.Addr)
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

type readyDeps struct {
	cfg     *config.Config
	mongo   *mongo.Client
	redis   *redis.Client
	archive *storage.MinIOStorage
	docs    *repository.MongoRepo
	users   *users.MongoUserRepository
}

// readiness returns 200 only when the document store and every configured
// optional dependency answer.
func readiness(d readyDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ready := true
		deps := map[string]bool{}

		deps["mongo"] = database.Ping(ctx, d.mongo, 2*time.Second) == nil
		ready = ready && deps["mongo"]

		if d.cfg.Redis.Host != "" {
			deps["redis"] = d.redis != nil && d.redis.Ping(ctx).Err() == nil
			ready = ready && deps["redis"]
		}
		if d.cfg.MinIO.Endpoint != "" {
			deps["minio"] = d.archive != nil && d.archive.Ping(ctx) == nil
			ready = ready && deps["minio"]
		}

		counts := gin.H{}
		if deps["mongo"] {
			if n, err := d.docs.Count(ctx, document.Filter{}); err == nil {
				counts["documents"] = n
			}
			if n, err := d.users.Count(ctx); err == nil {
				counts["users"] = n
			}
		}

		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "counts": counts, "uptime": time.Since(startTime).String()})
	}
}

func cors(origin string) gin.HandlerFunc {
	if origin == "" {
		origin = "*"
	}
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Disposition")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
