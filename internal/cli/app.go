package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"github.com/ai776/daily-picks/internal/ai"
	"github.com/ai776/daily-picks/internal/asset"
	"github.com/ai776/daily-picks/internal/config"
	"github.com/ai776/daily-picks/internal/events"
	"github.com/ai776/daily-picks/internal/logger"
	"github.com/ai776/daily-picks/internal/portfolio"
	"github.com/ai776/daily-picks/internal/storage"
)

var configPath = flag.String("config", "config.yaml", "path to config file")

// Register adds every subcommand to c.
func Register(c *subcommands.Commander) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(c.CommandsCommand(), "")

	c.Register(&serveCmd{}, "")
	c.Register(&assistCmd{}, "")
	c.Register(&scanCmd{}, "")
	c.Register(&newsCmd{}, "")
	c.Register(&quoteCmd{}, "")
}

// app is one session: config, journal, AI gateway and the seeded portfolio.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	repo      *storage.Repository
	gateway   *ai.Gateway
	bus       *events.Bus
	portfolio *portfolio.Service
	close     func()
}

func newApp(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	log := logger.NewWithWriter(logOut, cfg.Logging.Level)

	db, err := storage.NewDatabase(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("database init: %w", err)
	}
	repo := storage.NewRepository(db, log)

	backend, err := ai.NewBackend(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("ai backend init: %w", err)
	}
	gateway := ai.NewGateway(backend, repo, log)
	bus := events.NewBus(log)
	svc := portfolio.NewService(gateway, bus, cfg.Portfolio.DefaultExchangeRate, log, portfolio.WithRecorder(repo))

	for _, h := range cfg.Portfolio.Holdings {
		in := asset.Input{
			Ticker:   h.Ticker,
			Name:     h.Name,
			Quantity: h.Quantity,
			AvgPrice: h.AvgPrice,
			Source:   asset.Source(h.Source),
		}
		if _, err := svc.Seed(in); err != nil {
			return nil, fmt.Errorf("seed holding %q: %w", h.Ticker, err)
		}
	}

	return &app{
		cfg:       cfg,
		log:       log,
		repo:      repo,
		gateway:   gateway,
		bus:       bus,
		portfolio: svc,
		close: func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		},
	}, nil
}

func fail(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	return subcommands.ExitFailure
}
