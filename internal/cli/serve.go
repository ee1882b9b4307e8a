package cli

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/subcommands"

	"github.com/ai776/daily-picks/internal/chat"
	"github.com/ai776/daily-picks/internal/events"
	"github.com/ai776/daily-picks/internal/scheduler"
	"github.com/ai776/daily-picks/internal/telegram"
	"github.com/ai776/daily-picks/internal/web"
)

type serveCmd struct {
	port int
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the web dashboard, API and scheduled refresh" }
func (*serveCmd) Usage() string {
	return `picks serve [-port <port>]

  Starts the HTTP API and dashboard, seeds holdings from the config file and
  refreshes prices on the configured schedule until interrupted.
`
}

func (s *serveCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&s.port, "port", 0, "HTTP port (overrides web.port)")
}

func (s *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := newApp(ctx, os.Stdout)
	if err != nil {
		return fail("startup error: %v", err)
	}
	defer a.close()
	log := a.log
	log.Info("starting daily-picks", "provider", a.cfg.AI.Provider, "holdings", len(a.portfolio.Assets()))

	notifier := telegram.NewNotifier(a.cfg, log)
	if notifier.Enabled() {
		a.bus.AddSink(notifier)
	}

	if a.cfg.NATS.Enabled {
		sink, err := events.NewNATSSink(a.cfg.NATS.URL, a.cfg.NATS.Subject, log)
		if err != nil {
			log.Error("nats sink disabled", "error", err)
		} else {
			a.bus.AddSink(sink)
			defer sink.Close()
		}
	}

	sched, err := scheduler.New(a.portfolio, a.cfg.Refresh.Schedule, a.cfg.Refresh.News, log)
	if err != nil {
		return fail("scheduler error: %v", err)
	}

	session := chat.NewSession(a.gateway, a.portfolio, a.bus, a.cfg.Chat.ErrorMessage, log)

	port := a.cfg.Web.Port
	if s.port != 0 {
		port = s.port
	}
	gin.SetMode(gin.ReleaseMode)
	webServer := web.NewServer(web.Deps{
		Portfolio: a.portfolio,
		Scanner:   a.gateway,
		Chat:      session,
		Events:    a.bus,
		Journal:   a.repo,
	}, port, log)

	if err := sched.Start(ctx); err != nil {
		return fail("scheduler error: %v", err)
	}

	go func() {
		if err := webServer.Start(); err != nil {
			log.Error("web server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", "signal", sig.String())

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error("web server shutdown error", "error", err)
	}
	sched.Stop()

	log.Info("daily-picks stopped")
	return subcommands.ExitSuccess
}
