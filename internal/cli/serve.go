package cli

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yourusername/exam-api/internal/config"
	"github.com/yourusername/exam-api/internal/domain/repository"
	"github.com/yourusername/exam-api/internal/handler"
	"github.com/yourusername/exam-api/internal/middleware"
	"github.com/yourusername/exam-api/internal/repository/postgres"
	rediscache "github.com/yourusername/exam-api/internal/repository/redis"
	"github.com/yourusername/exam-api/internal/sandbox"
	"github.com/yourusername/exam-api/internal/service"
	"github.com/yourusername/exam-api/internal/websocket"
	"github.com/yourusername/exam-api/pkg/auth"
	"github.com/yourusername/exam-api/pkg/database"
	"github.com/yourusername/exam-api/pkg/logger"
	"github.com/yourusername/exam-api/pkg/monitoring"
)

// NewServeCmd запускает HTTP API, канал прокторинга и фоновую проверку просроченных попыток
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the exam API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// app собранные зависимости сервера
type app struct {
	router  *gin.Engine
	sweeper *service.ExpirySweeper
	closers []func() error
}

func runServer(parent context.Context, configPath, portFlag string) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if portFlag != "" {
		cfg.Server.Port = portFlag
	}

	log := logger.New(cfg.Log)
	defer log.Sync()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				log.Warn("Failed to close resource", zap.Error(err))
			}
		}
	}()

	go a.sweeper.Run(ctx)

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      a.router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		log.Info("Shutting down server...")
	case err := <-serverErr:
		log.Error("Server failed", zap.Error(err))
		cancel()
		return err
	case <-ctx.Done():
	}

	// Останавливаем фоновые горутины
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	log.Info("Server exited properly")
	return nil
}

func buildApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{}
	monitoring.Init()

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), cfg.Server.Mode == "debug")
	if err != nil {
		return nil, err
	}
	sqlDB, err := database.GetSQLDB(db)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, sqlDB.Close)

	if err := database.MigrateDB(db, cfg.Database.MigrationsPath, log); err != nil {
		return nil, err
	}

	redisClient, err := database.NewUniversalRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, redisClient.Close)
	cache, err := rediscache.NewCacheRepo(redisClient)
	if err != nil {
		return nil, err
	}

	runner, sandboxDB, err := buildSandbox(cfg.Sandbox, db, log)
	if err != nil {
		return nil, err
	}
	if sandboxDB != sqlDB {
		a.closers = append(a.closers, sandboxDB.Close)
	}

	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer)
	if err != nil {
		return nil, err
	}

	// Репозитории
	txManager := postgres.NewTxManager(db)
	examRepo := postgres.NewExamRepo(db)
	examQuestionRepo := postgres.NewExamQuestionRepo(db)
	attemptRepo := postgres.NewAttemptRepo(db)
	answerRepo := postgres.NewAnswerRepo(db)
	resultRepo := postgres.NewResultRepo(db)

	// Сервисы
	clock := service.NewTimeKeeper(cfg.Exam.GracePeriod())
	scoring := service.NewScoringService(examQuestionRepo, answerRepo, service.NewGraders(runner, log), log)
	attemptService := service.NewAttemptService(txManager, examRepo, examQuestionRepo, attemptRepo, answerRepo,
		resultRepo, cache, scoring, clock, cfg.Exam.ResultCacheTTL(), log)
	answerService := service.NewAnswerService(txManager, examRepo, examQuestionRepo, attemptRepo, answerRepo, clock, log)
	reportService := service.NewReportService(examRepo, attemptRepo, resultRepo, log)

	hub := websocket.NewProctorHub(log)
	attemptService.SetNotifier(hub)

	a.sweeper = service.NewExpirySweeper(attemptRepo, attemptService, cache, clock,
		cfg.Exam.SweepInterval(), time.Duration(cfg.Exam.SweepLockTTLSec)*time.Second, log)

	a.router = newRouter(cfg, log, routerDeps{
		authMiddleware: middleware.NewAuthMiddleware(jwtService, log),
		rateLimiter:    middleware.NewRateLimiter(redisClient, log),
		attempts:       handler.NewAttemptHandler(attemptService, answerService, clock, log),
		sandbox:        handler.NewSandboxHandler(runner, log),
		reports:        handler.NewReportHandler(reportService, log),
		proctor:        handler.NewProctorHandler(attemptService, hub, cfg.Server.AllowedOrigins, log),
		db:             db,
		redis:          redisClient,
	})
	return a, nil
}

// buildSandbox открывает БД песочницы и создает исполнитель для её диалекта
func buildSandbox(cfg config.SandboxConfig, mainDB *gorm.DB, log *zap.Logger) (*sandbox.Executor, *sql.DB, error) {
	sandboxDB, err := database.OpenSandboxDB(cfg, mainDB)
	if err != nil {
		return nil, nil, err
	}
	dialect, err := sandbox.DialectFor(cfg.Driver)
	if err != nil {
		return nil, nil, err
	}
	forbidden := cfg.ForbiddenTables
	if len(forbidden) == 0 {
		forbidden = config.DefaultForbiddenTables
	}
	executor := sandbox.NewExecutor(sandboxDB, dialect, sandbox.Options{
		Timeout:         cfg.Timeout(),
		MaxRows:         cfg.MaxRows,
		MaxConcurrent:   int64(cfg.MaxConcurrent),
		ForbiddenTables: forbidden,
	}, log)
	log.Info("SQL sandbox ready", zap.String("driver", dialect.Name()), zap.Duration("timeout", cfg.Timeout()))
	return executor, sandboxDB, nil
}

type routerDeps struct {
	authMiddleware *middleware.AuthMiddleware
	rateLimiter    *middleware.RateLimiter
	attempts       *handler.AttemptHandler
	sandbox        *handler.SandboxHandler
	reports        *handler.ReportHandler
	proctor        *handler.ProctorHandler
	db             *gorm.DB
	redis          redis.UniversalClient
}

func newRouter(cfg *config.Config, log *zap.Logger, d routerDeps) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.MetricsMiddleware())

	if cfg.Server.Mode == "release" {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	} else if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
		log.Warn("Failed to set trusted proxies", zap.Error(err))
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthHandler(d.db, d.redis))
	router.GET("/metrics", monitoring.PrometheusHandler())

	api := router.Group("/api")
	api.Use(d.authMiddleware.RequireAuth())
	{
		exams := api.Group("/exams/:id")
		exams.Use(middleware.ExtractUintParam("id", "examID"))
		{
			exams.POST("/attempts", d.attempts.StartAttempt)
			exams.GET("/results/export", d.authMiddleware.StaffOnly(), d.reports.ExportResults)
		}

		attempts := api.Group("/attempts/:id")
		attempts.Use(middleware.ExtractUintParam("id", "attemptID"))
		{
			attempts.GET("/questions", d.attempts.GetQuestions)
			attempts.POST("/answers",
				d.rateLimiter.LimitByUser(middleware.AnswerRateLimitConfig(cfg.Exam.AnswerRateLimit)),
				d.attempts.SaveAnswer)
			attempts.POST("/submit", d.attempts.Submit)
			attempts.GET("/result", d.attempts.GetResult)

			staff := attempts.Group("")
			staff.Use(d.authMiddleware.StaffOnly())
			{
				staff.POST("/resume", d.attempts.Resume)
				staff.POST("/abandon", d.attempts.Abandon)
			}
		}

		api.POST("/sandbox/run",
			d.rateLimiter.LimitByUser(middleware.SandboxRateLimitConfig(cfg.Sandbox.RateLimitPerMinute)),
			d.sandbox.RunSQL)
	}

	// Браузер не передает заголовки при открытии WebSocket, токен приходит в ?token=
	router.GET("/ws/attempts/:id/proctor",
		d.authMiddleware.RequireWSAuth(),
		middleware.ExtractUintParam("id", "attemptID"),
		d.proctor.HandleConnection)

	return router
}

// healthHandler проверяет доступность БД и Redis
func healthHandler(db *gorm.DB, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{"status": "ok", "time": time.Now().Unix()}
		code := http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			status["status"] = "degraded"
			status["database"] = "unavailable"
			code = http.StatusServiceUnavailable
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			// Redis нужен только для кеша и лимитов, сервис продолжает работать
			status["redis"] = "unavailable"
		}
		c.JSON(code, status)
	}
}

var _ repository.CacheRepository = (*rediscache.CacheRepo)(nil)
