package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/tutorconnect-api/internal/config"
	"github.com/iliyamo/tutorconnect-api/internal/database"
	"github.com/iliyamo/tutorconnect-api/internal/handler"
	"github.com/iliyamo/tutorconnect-api/internal/jobs"
	"github.com/iliyamo/tutorconnect-api/internal/logger"
	"github.com/iliyamo/tutorconnect-api/internal/mailer"
	"github.com/iliyamo/tutorconnect-api/internal/middleware"
	"github.com/iliyamo/tutorconnect-api/internal/queue"
	"github.com/iliyamo/tutorconnect-api/internal/repository"
	"github.com/iliyamo/tutorconnect-api/internal/router"
	"github.com/iliyamo/tutorconnect-api/internal/service"
)

func main() {
	cfg := config.Load()

	lg, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		lg.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, lg); err != nil {
		lg.Fatal("migrate database", zap.Error(err))
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		lg.Warn("redis unreachable; slot lease, rate limit and cache disabled")
	} else {
		defer rdb.Close()
	}

	var mail queue.Mailer
	if cfg.SendGridKey != "" {
		mail = mailer.NewSendGrid(cfg.SendGridKey, cfg.SendGridFromEmail, cfg.SendGridFromName, lg)
	} else {
		lg.Warn("SENDGRID_API_KEY not set; emails are logged only")
		mail = mailer.NewLog(lg)
	}

	var notifier service.Notifier = queue.Direct{Mailer: mail}
	consumerDone := make(chan struct{})
	if cfg.RabbitURL != "" {
		notifier = queue.NewPublisher(cfg.RabbitURL, cfg.NotifyQueue)
		consumer := queue.NewConsumer(cfg.RabbitURL, cfg.NotifyQueue, mail, lg, cfg.NotifyTimeout)
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("notification consumer stopped", zap.Error(err))
			}
		}()
	} else {
		close(consumerDone)
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	bookings := repository.NewBookingRepo(db)

	engine := service.NewBookingService(bookings, users, notifier,
		service.WithLogger(lg.Named("booking")),
		service.WithSlotLocker(repository.NewRedisSlotLocker(rdb, "slotlock", cfg.SlotLockTTL)),
		service.WithTimeouts(cfg.StoreTimeout, cfg.NotifyTimeout),
	)
	queries := service.NewBookingQueryService(bookings, lg.Named("booking"), time.Now, cfg.StoreTimeout)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(lg.Named("http")))

	router.RegisterRoutes(e, &handler.HealthHandler{DB: db, Redis: rdb})
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, lg.Named("auth")), cfg.JWTSecret)
	router.RegisterBookings(e, handler.NewBookingHandler(engine, queries, lg.Named("booking")), cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, lg.Named("ratelimit")))
	router.RegisterTutors(e, handler.NewTutorHandler(users, lg.Named("tutors")),
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb, lg.Named("cache")))

	var scheduler *jobs.Scheduler
	if cfg.AutoCompleteCron != "" {
		job := jobs.NewAutoComplete(bookings, lg.Named("jobs"), time.Now, 0)
		scheduler, err = jobs.NewScheduler(cfg.AutoCompleteCron, job, lg.Named("jobs"))
		if err != nil {
			lg.Fatal("schedule auto-complete", zap.String("spec", cfg.AutoCompleteCron), zap.Error(err))
		}
		scheduler.Start()
	}

	addr := ":" + cfg.Port
	go func() {
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Error("http shutdown", zap.Error(err))
	}
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	engine.Wait()
	<-consumerDone
	lg.Info("stopped")
}
