package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/msgbottle/bottle-go/internal/clock"
	"github.com/msgbottle/bottle-go/internal/config"
	"github.com/msgbottle/bottle-go/internal/handler"
	"github.com/msgbottle/bottle-go/internal/mail"
	"github.com/msgbottle/bottle-go/internal/middleware"
	"github.com/msgbottle/bottle-go/internal/repository"
	"github.com/msgbottle/bottle-go/internal/service"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("bottle-api", pflag.ContinueOnError)
	envFile := flagSet.String("env-file", ".env", "dotenv file to load before reading the environment")
	port := flagSet.String("port", "", "listen port (overrides PORT)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(*envFile); err != nil {
		slog.Warn("no env file found, using environment variables", "file", *envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *port != "" {
		cfg.Port = *port
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewDB(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := repository.Migrate(ctx, db, cfg.DatabaseDriver); err != nil {
		return err
	}

	mailer, err := newMailer(cfg, logger)
	if err != nil {
		return err
	}

	clk := clock.Real()
	authService := service.NewAuthService(db, clk, cfg.LoginWindow, cfg.TokenWindow)
	messageService := service.NewMessageService(db, clk)
	assignmentService := service.NewAssignmentService(db, clk, cfg.MaxPendingGrants, cfg.DeliveryCooldown)

	loginLimiter := middleware.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateBurst)
	go loginLimiter.Run(ctx)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handler.NewRouter(handler.RouterConfig{
			Auth:         handler.NewAuthHandler(authService, mailer),
			Messages:     handler.NewMessageHandler(messageService, assignmentService),
			Tokens:       authService,
			LoginLimiter: loginLimiter,
			CORS:         cfg.CORSOptions(),
			Logger:       logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env, "db", cfg.DatabaseDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func newLogger(cfg config.Config) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newMailer(cfg config.Config, logger *slog.Logger) (mail.Sender, error) {
	if !cfg.Mail.Configured() {
		logger.Warn("mail not configured, login keys will be logged")
		return mail.NewLogSender(logger), nil
	}

	sender, err := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		FromName: cfg.Mail.FromName,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring mail: %w", err)
	}
	return sender, nil
}
