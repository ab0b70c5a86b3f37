package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/moodpoints-api/api/swagger"
	"github.com/noah-isme/moodpoints-api/internal/handler"
	internalmiddleware "github.com/noah-isme/moodpoints-api/internal/middleware"
	"github.com/noah-isme/moodpoints-api/internal/repository"
	"github.com/noah-isme/moodpoints-api/internal/service"
	"github.com/noah-isme/moodpoints-api/pkg/cache"
	"github.com/noah-isme/moodpoints-api/pkg/config"
	"github.com/noah-isme/moodpoints-api/pkg/database"
	"github.com/noah-isme/moodpoints-api/pkg/jobs"
	"github.com/noah-isme/moodpoints-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/moodpoints-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/moodpoints-api/pkg/middleware/requestid"
)

// @title Moodpoints API
// @version 0.1.0
// @description Daily emotion check-ins, points and rewards for students; class analytics for teachers
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// stores bundles the backends selected by STORE_DRIVER.
type stores struct {
	ledger      service.LedgerStore
	roster      service.RosterReader
	submissions service.SubmissionReader
	rewards     service.RewardReader
	balances    interface {
		Balance(ctx context.Context, studentID string) (int64, error)
	}
	db *sqlx.DB
}

func openStores(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*stores, error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		logr.Warn("using in-memory store; data is lost on restart")
		seed := repository.Seed{}
		if cfg.Store.SeedDemo {
			seed = repository.DemoSeed()
		}
		mem := repository.NewMemoryStore(seed)
		return &stores{ledger: mem, roster: mem, submissions: mem, rewards: mem, balances: mem}, nil
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Store.AutoMigrate {
		if err := repository.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	if cfg.Store.SeedDemo {
		if err := repository.ApplySeed(ctx, db, repository.DemoSeed()); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}
	ledger := repository.NewLedgerRepository(db)
	return &stores{
		ledger:      ledger,
		roster:      repository.NewRosterRepository(db),
		submissions: repository.NewSubmissionRepository(db),
		rewards:     repository.NewRewardRepository(db),
		balances:    ledger,
		db:          db,
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to open store", zap.Error(err))
	}
	if st.db != nil {
		defer st.db.Close()
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, analytics cache disabled", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr,
		cfg.Analytics.CacheEnabled && cfg.Store.Driver != config.StoreDriverMemory)
	clock := service.SystemClock{}

	analyticsSvc := service.NewAnalyticsService(st.roster, st.submissions, cacheSvc, metricsSvc, clock, service.AnalyticsOptions{
		DefaultWindowDays: cfg.Analytics.DefaultWindowDays,
		MaxWindowDays:     cfg.Analytics.MaxWindowDays,
		Location:          cfg.Analytics.ReportingLocation(),
		CacheTTL:          cfg.Analytics.CacheTTL,
	}, logr)

	invalidator := service.NewAnalyticsInvalidator(st.roster, analyticsSvc, metricsSvc, logr)
	queue := jobs.NewQueue("analytics", invalidator.Handle, jobs.QueueConfig{
		Workers:     cfg.Jobs.Workers,
		MaxRetries:  cfg.Jobs.MaxRetries,
		RetryDelay:  cfg.Jobs.RetryDelay,
		Logger:      logr,
		OnExhausted: invalidator.Exhausted,
	})
	queue.Start(ctx)
	invalidator.Attach(queue)

	engagementSvc := service.NewEngagementService(service.EngagementParams{
		Store:               st.ledger,
		Submissions:         st.submissions,
		Catalog:             service.NewRewardCatalog(st.rewards),
		Guard:               service.NewSubmissionGuard(cfg.Ledger.SubmissionCooldown),
		Notifier:            invalidator,
		Clock:               clock,
		Validator:           validator.New(),
		Metrics:             metricsSvc,
		Logger:              logr,
		PointsPerSubmission: cfg.Ledger.PointsPerSubmission,
	})
	profileSvc := service.NewProfileService(st.roster, st.balances, logr)
	tokenSvc := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)

	checks := map[string]handler.Pinger{}
	if st.db != nil {
		checks["postgres"] = st.db
	}
	if cacheRepo.Enabled() {
		checks["redis"] = handler.PingFunc(cacheRepo.Ping)
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	limiter := internalmiddleware.NewTokenBucket(cfg.RateLimit.SubmitBurst, cfg.RateLimit.SubmitPerMinute)
	api := r.Group(cfg.APIPrefix, internalmiddleware.JWT(tokenSvc))
	handler.RegisterRoutes(api, handler.Handlers{
		Engagement: handler.NewEngagementHandler(engagementSvc),
		Analytics:  handler.NewAnalyticsHandler(analyticsSvc),
		Profile:    handler.NewProfileHandler(profileSvc),
	}, limiter.Middleware())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	queue.Stop()
}
