package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/zonefree41/getfiletax/internal/config"
	"github.com/zonefree41/getfiletax/internal/handlers"
	"github.com/zonefree41/getfiletax/internal/health"
	"github.com/zonefree41/getfiletax/internal/httpmiddleware"
	"github.com/zonefree41/getfiletax/internal/logging"
	"github.com/zonefree41/getfiletax/internal/mail"
	"github.com/zonefree41/getfiletax/internal/metrics"
	"github.com/zonefree41/getfiletax/internal/payments"
	"github.com/zonefree41/getfiletax/internal/rate"
	"github.com/zonefree41/getfiletax/internal/security"
	"github.com/zonefree41/getfiletax/internal/session"
	"github.com/zonefree41/getfiletax/internal/storage"
	"github.com/zonefree41/getfiletax/internal/uploads"
	"github.com/zonefree41/getfiletax/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.App.LogLevel, cfg.App.ServiceName, cfg.App.Env)

	if cfg.App.Env == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)

	ready := health.NewManager(true)

	dsn := connString(cfg)

	if err := storage.Migrate(context.Background(), dsn); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	pool, err := connectDB(dsn)
	if err != nil {
		logger.Error("db connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := storage.New(pool, security.Argon2Params(cfg.Argon2))

	if err := bootstrapAdmin(context.Background(), store, cfg, logger); err != nil {
		logger.Error("admin bootstrap failed", "error", err)
		os.Exit(1)
	}

	limiter, limiterClose, err := buildLimiter(cfg, logger)
	if err != nil {
		logger.Error("rate limiter init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = limiterClose()
	}()

	sessions := session.NewManager(store, cfg.SessionTTL, cfg.App.Env != "dev")

	mailer := buildMailer(cfg, logger)

	localFiles, err := uploads.NewLocal(cfg.Upload.LocalDir)
	if err != nil {
		logger.Error("upload dir init failed", "error", err)
		os.Exit(1)
	}

	var bucket uploads.Storage
	if cfg.Upload.S3Bucket != "" {
		s3Store, err := uploads.NewS3(context.Background(), cfg.Upload.S3Region, cfg.Upload.S3AccessKey, cfg.Upload.S3SecretKey, cfg.Upload.S3Bucket, cfg.Upload.S3Endpoint)
		if err != nil {
			logger.Error("s3 storage init failed", "error", err)
			os.Exit(1)
		}
		bucket = s3Store
	}

	plans := payments.NewCatalog(cfg.Checkout.IndividualURL, cfg.Checkout.BusinessURL, cfg.Checkout.FamilyURL)

	router := gin.New()
	router.MaxMultipartMemory = cfg.Upload.MaxSizeBytes
	router.SetHTMLTemplate(web.Templates())
	router.Use(httpmiddleware.RequestID())
	router.Use(httpmiddleware.Logger(logger))
	router.Use(httpmiddleware.Recovery(logger))

	router.GET("/healthz", health.LivenessHandler)
	router.GET("/readyz", health.ReadinessHandler(ready))
	router.GET(cfg.App.MetricsPath, gin.WrapH(metrics.Handler(registry)))
	router.StaticFS("/static", web.Static())

	handlers.NewAuthHandler(store, sessions, mailer, logger, limiter, cfg.ResetTokenTTL).RegisterRoutes(router)
	handlers.NewAdminHandler(store, sessions, mailer, logger, localFiles).RegisterRoutes(router)
	handlers.NewPagesHandler(store, plans, logger).RegisterRoutes(router)
	handlers.NewUploadHandler(localFiles, bucket, logger, cfg.Upload.MaxFiles).RegisterRoutes(router)

	addr := fmt.Sprintf("%s:%d", cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.App.HTTP.ReadTimeout,
		WriteTimeout: cfg.App.HTTP.WriteTimeout,
		IdleTimeout:  cfg.App.HTTP.IdleTimeout,
	}

	janitorCtx, janitorCancel := context.WithCancel(context.Background())
	defer janitorCancel()
	go sessionJanitor(janitorCtx, store, logger)

	go func() {
		logger.Info("portal starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(server, ready, logger)
}

// sessionJanitor sweeps expired sessions out of the store. Expiry is already
// enforced on read, so this only keeps the table from growing.
func sessionJanitor(ctx context.Context, store *storage.Store, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.DeleteExpiredSessions(ctx)
			if err != nil {
				logger.Error("session cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("expired sessions removed", "count", n)
			}
		}
	}
}

func connString(cfg *config.Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.DB.User,
		cfg.DB.Password,
		cfg.DB.Host,
		cfg.DB.Port,
		cfg.DB.Name,
		cfg.DB.SSLMode,
	)
}

func connectDB(dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// bootstrapAdmin creates the configured staff account on first start. The
// admin goes through the same store and hashing as every client account.
func bootstrapAdmin(ctx context.Context, store *storage.Store, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Admin.Email == "" || cfg.Admin.Password == "" {
		if cfg.App.Env == "dev" {
			logger.Warn("admin credentials not configured, admin area disabled")
			return nil
		}
		return fmt.Errorf("TAXPORTAL_ADMIN_EMAIL and TAXPORTAL_ADMIN_PASSWORD must be set")
	}

	_, err := store.CreateAccount(ctx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password, storage.RoleAdmin)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateAccount) {
			return nil
		}
		return err
	}
	logger.Info("admin account created", "email", cfg.Admin.Email)
	return nil
}

func buildMailer(cfg *config.Config, logger *slog.Logger) *mail.Mailer {
	if cfg.SMTP.Host == "" || cfg.SMTP.User == "" || cfg.SMTP.Password == "" {
		logger.Warn("smtp not configured, emails will be skipped")
		return mail.NewMailer(nil, cfg.App.BaseURL, logger)
	}

	sender, err := mail.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From)
	if err != nil {
		logger.Warn("smtp client init failed, emails will be skipped", "error", err)
		return mail.NewMailer(nil, cfg.App.BaseURL, logger)
	}
	return mail.NewMailer(sender, cfg.App.BaseURL, logger)
}

func buildLimiter(cfg *config.Config, logger *slog.Logger) (rate.Limiter, func() error, error) {
	if cfg.RateLimit.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.Redis.Addr,
			Password: cfg.RateLimit.Redis.Password,
			DB:       cfg.RateLimit.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			if cfg.App.Env == "dev" || cfg.App.Env == "test" {
				logger.Warn("redis rate limiter unavailable, falling back to memory", "error", err)
				return rate.NewMemory(cfg.RateLimit.LoginLimit, cfg.RateLimit.Window), func() error { return nil }, nil
			}
			return nil, nil, err
		}

		return rate.NewRedisLimiter(client, cfg.RateLimit.LoginLimit, cfg.RateLimit.Window, cfg.RateLimit.Redis.Prefix), client.Close, nil
	}

	return rate.NewMemory(cfg.RateLimit.LoginLimit, cfg.RateLimit.Window), func() error { return nil }, nil
}

func waitForShutdown(server *http.Server, ready *health.Manager, logger *slog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ready.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutdown started")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		return
	}
	logger.Info("shutdown complete")
}
