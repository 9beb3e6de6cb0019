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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/finiti-glossary/internal/auth"
	"github.com/iliyamo/finiti-glossary/internal/config"
	"github.com/iliyamo/finiti-glossary/internal/database"
	"github.com/iliyamo/finiti-glossary/internal/glossary"
	"github.com/iliyamo/finiti-glossary/internal/handler"
	"github.com/iliyamo/finiti-glossary/internal/logger"
	"github.com/iliyamo/finiti-glossary/internal/mail"
	"github.com/iliyamo/finiti-glossary/internal/metrics"
	"github.com/iliyamo/finiti-glossary/internal/middleware"
	"github.com/iliyamo/finiti-glossary/internal/queue"
	"github.com/iliyamo/finiti-glossary/internal/repository"
	"github.com/iliyamo/finiti-glossary/internal/router"
	"github.com/iliyamo/finiti-glossary/internal/service"
	"github.com/iliyamo/finiti-glossary/internal/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API (and the audit consumer when events are enabled)",
	RunE:  runServe,
}

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	m := metrics.New()

	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
		if err := database.Migrate(cmd.Context(), db, cfg.DBDriver); err != nil {
			return err
		}
		log.Info().Str("driver", cfg.DBDriver).Msg("schema applied")
	}

	rdb := config.NewRedisClient(log)
	if rdb != nil {
		defer rdb.Close()
	}

	users := repository.NewUserRepo(db)
	terms := repository.NewTermRepo(db)
	tokens := repository.NewTokenRepo(db)

	opts := []glossary.Option{glossary.WithLogger(log), glossary.WithMetrics(m)}
	if cfg.EventsEnabled {
		opts = append(opts, glossary.WithEvents(service.NewEventPublisher(cfg.RabbitURL, log)))
	}
	glossarySvc := glossary.NewService(terms, users, opts...)

	issuer := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTLMin)
	authSvc := auth.NewService(users, tokens, utils.NewBcryptHasher(cfg.BcryptCost), issuer, mail.New(cfg.Mail, log),
		auth.Config{
			RefreshTTLDays:  cfg.RefreshTTLDays,
			ResetTTL:        cfg.ResetTTL,
			FrontendBaseURL: cfg.FrontendBaseURL,
		}, log)

	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb, log)
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLog(log, m))

	router.RegisterRoutes(e, db, m)
	router.RegisterAuth(e, handler.NewAuthHandler(authSvc, m, log), issuer, limit)
	router.RegisterAdmin(e, handler.NewGlossaryHandler(glossarySvc, cache, log), issuer, cache)
	router.RegisterPublic(e, handler.NewPublicHandler(terms, log), cache)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	addr := ":" + cfg.Port
	g.Go(func() error {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down")
		return e.Shutdown(sctx)
	})
	if cfg.EventsEnabled {
		consumer := queue.NewAuditConsumer(cfg.RabbitURL, cfg.AuditLogPath, log)
		g.Go(func() error {
			if err := consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
