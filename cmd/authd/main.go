package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-print"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-auth-otp"
	"github.com/goliatone/go-auth-otp/activitymap"
	"github.com/goliatone/go-auth-otp/config"
	"github.com/goliatone/go-auth-otp/mailer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "authd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	zl := newZerolog(cfg)
	logger := auth.NewZerologLogger(zl)

	if cfg.Debug {
		fmt.Println(print.MaybeHighlightJSON(cfg))
	}

	db, err := openDB(ctx, cfg.GetDatabaseDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	repo := auth.NewRepositoryManager(db)
	repo.MustValidate()

	sender, err := mailer.New(cfg, logger)
	if err != nil {
		return err
	}

	service, err := auth.NewServiceFromConfig(cfg, repo, sender, logger,
		auth.WithActivitySink(activitymap.Sink(func(ctx context.Context, record activitymap.Normalized) error {
			zl.Info().
				Str("verb", record.Verb).
				Str("actor_id", record.ActorID).
				Str("object_id", record.ObjectID).
				Fields(record.Metadata).
				Time("occurred_at", record.OccurredAt).
				Msg("activity")
			return nil
		})),
	)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName:               "authd",
		DisableStartupMessage: !cfg.Debug,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.GetCORSOrigins(), ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,OPTIONS",
	}))

	auth.RegisterAuthRoutes(app.Group("/api/auth"), service, auth.WithControllerLogger(logger))

	errc := make(chan error, 1)
	go func() {
		zl.Info().Str("addr", cfg.GetHTTPAddr()).Msg("listening")
		errc <- app.Listen(cfg.GetHTTPAddr())
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	zl.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return app.ShutdownWithContext(shutdownCtx)
}

func openDB(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := auth.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

func newZerolog(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var base zerolog.Logger
	if cfg.LogPretty {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		base = zerolog.New(os.Stderr)
	}

	return base.Level(level).With().Timestamp().Str("service", "authd").Logger()
}
