// Файл: main.go

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"laundry-delivery/internal/authz"
	"laundry-delivery/internal/listeners"
	"laundry-delivery/internal/repositories"
	"laundry-delivery/internal/routes"
	"laundry-delivery/internal/services"
	"laundry-delivery/internal/tracking"
	"laundry-delivery/pkg/config"
	"laundry-delivery/pkg/customvalidator"
	"laundry-delivery/pkg/database/postgresql"
	apperrors "laundry-delivery/pkg/errors"
	"laundry-delivery/pkg/eventbus"
	"laundry-delivery/pkg/filestorage"
	"laundry-delivery/pkg/keylock"
	applogger "laundry-delivery/pkg/logger"
	appmiddleware "laundry-delivery/pkg/middleware"
	"laundry-delivery/pkg/scheduler"
	"laundry-delivery/pkg/service"
	"laundry-delivery/pkg/utils"
	appwebsocket "laundry-delivery/pkg/websocket"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 1. Конфиг и логгер
	cfg := config.New()
	logger := applogger.NewLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	if cfg.JWT.SecretKey == "" {
		logger.Fatal("JWT_SECRET_KEY не задан")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Хранилища
	dbConn := postgresql.ConnectDB(cfg.Postgres.DSN)
	defer dbConn.Close()
	if err := postgresql.Migrate(ctx, dbConn); err != nil {
		logger.Fatal("Ошибка миграций", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		logger.Fatal("не удалось подключиться к Redis", zap.Error(err), zap.String("address", cfg.Redis.Address))
	}

	uploadsDir, err := filepath.Abs(cfg.Uploads.Dir)
	if err != nil {
		logger.Fatal("не удалось получить абсолютный путь к uploads", zap.Error(err))
	}
	fileStorage, err := filestorage.NewLocalFileStorage(uploadsDir, cfg.Uploads.URLPrefix)
	if err != nil {
		logger.Fatal("не удалось создать файловое хранилище", zap.Error(err))
	}

	// 3. Репозитории
	txManager := repositories.NewTxManager(dbConn)
	orderRepo := repositories.NewOrderRepository(dbConn, logger.Named("orders"))
	assignmentRepo := repositories.NewAssignmentRepository(dbConn, logger.Named("assignments"))
	processingRepo := repositories.NewOrderProcessingRepository(dbConn, logger.Named("processing"))
	historyRepo := repositories.NewOrderHistoryRepository(dbConn, logger.Named("history"))
	userRepo := repositories.NewUserRepository(dbConn, logger.Named("users"))
	cacheRepo := repositories.NewRedisCacheRepository(redisClient)

	// 4. Инфраструктура
	bus := eventbus.New(cfg.EventTimeout, logger.Named("eventbus"))
	jobs := scheduler.New(repositories.NewRedisJobStore(redisClient, logger), cfg.Orders.JobRetryDelay, logger.Named("scheduler"))
	hub := appwebsocket.NewHub(logger.Named("hub"))
	locations := tracking.NewLocationCache()
	sessions := tracking.NewSessionRegistry()

	// 5. Сервисы
	identity := services.NewIdentityService(userRepo, cacheRepo, logger, cfg.RoleCacheTTL)
	gate := authz.NewGatekeeper(orderRepo, assignmentRepo, identity, logger.Named("authz"))
	media := services.NewMediaService(fileStorage, logger)
	orderService := services.NewOrderService(
		txManager, orderRepo, assignmentRepo, processingRepo, historyRepo,
		identity, gate, media, jobs, bus, keylock.New(),
		services.OrderTimings{
			AutoCompleteDelay:  cfg.Orders.AutoCompleteDelay,
			ProcessingClaimTTL: cfg.Orders.ProcessingClaimTTL,
			SweepBatchSize:     uint64(cfg.Orders.SweepBatchSize),
		},
		logger.Named("orders"),
	)
	trackingService := services.NewTrackingService(hub, sessions, locations, gate, logger.Named("tracking"))

	services.RegisterJobs(jobs, orderService, cfg.Orders.SweepInterval)
	listeners.NewOrderStatusListener(services.NewRoomNotificationService(hub, logger), locations, logger).Register(bus)

	// 6. HTTP
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		DisableStackAll: true,
		StackSize:       1 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("!!! ОБНАРУЖЕНА ПАНИКА (PANIC) !!!",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.String("stack", string(stack)),
			)
			if !c.Response().Committed {
				httpErr := apperrors.NewHttpError(http.StatusInternalServerError, "Внутренняя ошибка сервера", err, nil)
				_ = utils.ErrorResponse(c, httpErr, logger)
			}
			return err
		},
	}))
	e.Use(appmiddleware.InjectLogger(logger.Named("http")))

	v := validator.New()
	if err := customvalidator.RegisterCustomValidations(v); err != nil {
		logger.Fatal("Ошибка регистрации кастомных правил валидации", zap.Error(err))
	}
	e.Validator = utils.NewValidator(v)

	routes.InitRouter(e, routes.Services{
		Orders:           orderService,
		Tracking:         trackingService,
		JWT:              service.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL, logger.Named("jwt")),
		WSMessageTimeout: cfg.Server.RequestTimeout,
	}, &routes.Loggers{
		Main:     logger,
		Auth:     logger.Named("auth"),
		Order:    logger.Named("orders"),
		Tracking: logger.Named("tracking"),
	}, uploadsDir, cfg.Uploads.URLPrefix)

	// 7. Запуск: сервер и планировщик живут до сигнала остановки
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("🚀 Сервер запущен", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return jobs.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := e.Shutdown(shutdownCtx)
		bus.Wait()
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("Сервис остановлен с ошибкой", zap.Error(err))
		return
	}
	logger.Info("Сервис остановлен")
}
