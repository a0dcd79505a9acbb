package app

import (
	"context"
	"fmt"
	"intellitest_backend/internal/config"
	"intellitest_backend/internal/controller"
	"intellitest_backend/internal/repository"
	"intellitest_backend/internal/service"
	"intellitest_backend/internal/util"
	"intellitest_backend/pkg/database"
	"intellitest_backend/pkg/logger"
	"intellitest_backend/pkg/monitoring"
	"intellitest_backend/pkg/security"
	"intellitest_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	rateLimiter     *security.RateLimiter
	tracer          *sdktrace.TracerProvider
	hubCancel       context.CancelFunc
	configCallbacks []func(*config.Config)
}

// 组卷、交卷、监控服务在事务内按 tx 构造自己的仓储
type repositories struct {
	user     *repository.UserRepository
	question *repository.QuestionRepository
}

type services struct {
	auth       *service.AuthService
	storage    *service.StorageService
	user       *service.UserService
	question   *service.QuestionService
	test       *service.TestService
	submission *service.SubmissionService
	monitoring *service.MonitoringService
	seed       *service.SeedService
	hub        *service.ProgressHub
}

type controllers struct {
	auth       *controller.AuthController
	user       *controller.UserController
	question   *controller.QuestionController
	test       *controller.TestController
	submission *controller.SubmissionController
	monitoring *controller.MonitoringController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ReloadConfig 由配置监听器调用，依次执行已注册的回调
func (a *App) ReloadConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
	logger.Log.Debug("Config callbacks applied", zap.Int("callbacks", len(a.configCallbacks)))
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:     repository.NewUserRepository(db),
		question: repository.NewQuestionRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.user = service.NewUserService(repos.user)
	s.question = service.NewQuestionService(repos.question, s.storage)
	s.test = service.NewTestService(db, rdb)

	s.hub = service.NewProgressHub(rdb)
	s.submission = service.NewSubmissionService(db, rdb, s.hub)
	s.monitoring = service.NewMonitoringService(db, rdb, cfg.Analytics.CacheTTL())
	s.seed = service.NewSeedService(db)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:       controller.NewAuthController(s.auth),
		user:       controller.NewUserController(s.user),
		question:   controller.NewQuestionController(s.question),
		test:       controller.NewTestController(s.test, s.submission),
		submission: controller.NewSubmissionController(s.submission),
		monitoring: controller.NewMonitoringController(s.monitoring, s.hub),
		health:     controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.RequestID())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	a.rateLimiter = security.NewRateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute)
	router.Use(a.rateLimiter.Middleware())
	a.RegisterConfigCallback(func(c *config.Config) {
		a.rateLimiter.Update(c.RateLimit.MaxRequests, time.Duration(c.RateLimit.WindowMinutes)*time.Minute)
	})

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// Build 组装服务与路由，不负责建立连接，测试中可直接传入 sqlite 与 nil Redis
func Build(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *App {
	util.RegisterValidators()
	monitoring.Init()

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	app.services = app.initServices(repos, cfg, db, rdb)
	controllers := app.initControllers(app.services, db)

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Server.Mode != gin.ReleaseMode {
		router.Use(gin.Logger())
	}
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.RegisterConfigCallback(func(c *config.Config) {
		logger.ApplyMode(c.Server.Mode)
	})

	return app
}

func NewApp(cfg *config.Config) (*App, error) {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	// release 模式默认不自动迁移，需显式 -migrate
	if cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode {
		if err := database.Migrate(db); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		logger.Log.Info("Database migrated")
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("initialize redis: %w", err)
	}

	app := Build(cfg, db, rdb)

	if cfg.SeedFile != "" {
		data, err := service.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		if err := app.services.seed.Seed(context.Background(), data); err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("intellitest-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Error("Failed to initialize tracing", zap.Error(err))
		} else {
			app.tracer = tp
		}
	}

	return app, nil
}

func (a *App) Run() {
	hubCtx, cancel := context.WithCancel(context.Background())
	a.hubCancel = cancel
	go a.services.hub.Run(hubCtx)

	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// 关闭监控 WebSocket 连接
	a.hubCancel()
	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	log.Println("Server exiting")
}
