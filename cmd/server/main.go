package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirasaad/accrual/infra/initializer"
	"github.com/amirasaad/accrual/pkg/app"
	"github.com/amirasaad/accrual/pkg/config"
	"github.com/amirasaad/accrual/webapi"
	log "github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

type server struct {
	cfg       *config.App
	container *initializer.Container
	app       *app.App
	fiber     *fiber.App
}

// newServer wires the dependencies and routes without listening.
func newServer(cfg *config.App) (*server, error) {
	container, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	a, err := app.New(container.Deps, container.NewOracle, container.NewPaidAmount)
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("failed to create application: %w", err)
	}
	if err := a.SettingsService.Restore(context.Background()); err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("failed to restore settings: %w", err)
	}

	return &server{
		cfg:       cfg,
		container: container,
		app:       a,
		fiber:     webapi.SetupApp(a),
	}, nil
}

func (s *server) shutdown(ctx context.Context) error {
	err := s.fiber.ShutdownWithContext(ctx)
	s.app.Keeper.Stop()
	return errors.Join(err, s.container.Close())
}

func run() error {
	logger := slog.Default()
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}

	srv, err := newServer(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Keeper.Enabled {
		srv.app.Keeper.Start(ctx)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Starting server",
		"env", cfg.Env,
		"address", addr,
		"scheme", cfg.Server.Scheme,
	)

	errc := make(chan error, 1)
	go func() { errc <- srv.fiber.Listen(addr) }()

	select {
	case err := <-errc:
		_ = srv.shutdown(context.Background())
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.shutdown(shutdownCtx)
}
