package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"RiskPulse/internal/domain"
	"RiskPulse/internal/service/finnhub"
	"RiskPulse/internal/usecase"
	"RiskPulse/pkg/config"
	xhttp "RiskPulse/pkg/http"
	pkgkafka "RiskPulse/pkg/kafka"
	applogger "RiskPulse/pkg/logger"
)

// Components are the long-running parts the App starts and stops. Optional
// parts are nil when disabled in config.
type Components struct {
	Engine    *usecase.Engine
	Writer    *usecase.Writer
	Handler   xhttp.Handler
	Consumer  *pkgkafka.Consumer
	Ticks     pkgkafka.MessageHandler
	Stream    *finnhub.Stream
	Collector *usecase.TickCollector
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	c          Components
	httpServer *xhttp.Server
	cron       *cron.Cron
	cancel     context.CancelFunc
	done       chan struct{}
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, c Components) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, l: l, c: c, done: make(chan struct{})}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.l.Info("shutdown signal received")

	sctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return a.Shutdown(sctx)
}

// Start loads the catalog from the store and starts every component.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	a.c.Writer.Start()
	if err := a.c.Engine.Bootstrap(ctx); err != nil {
		if !errors.Is(err, domain.ErrPersistenceUnavailable) {
			return fmt.Errorf("bootstrap engine: %w", err)
		}
		// the built-in catalog keeps serving; the next refresh retries the store
		a.l.Warn("store unavailable at startup", applogger.Error(err))
	}

	a.cron = cron.New(cron.WithLogger(cronLogger{a.l}), cron.WithChain(cron.SkipIfStillRunning(cronLogger{a.l})))
	if spec := a.cfg.Scheduler.CatalogRefresh; spec != "" {
		if _, err := a.cron.AddFunc(spec, func() { a.refresh(ctx) }); err != nil {
			return fmt.Errorf("schedule catalog refresh %q: %w", spec, err)
		}
	}
	a.cron.Start()

	if a.c.Consumer != nil && a.c.Ticks != nil {
		a.c.Consumer.RegisterHandler(a.c.Ticks)
		if err := a.c.Consumer.Start(); err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.c.Ticks.Topic()))
	}

	if a.c.Stream != nil {
		go func() {
			defer close(a.done)
			if err := a.c.Stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.l.Error("price stream stopped", applogger.Error(err))
			}
		}()
		if a.c.Collector != nil {
			go a.c.Collector.Run(ctx)
		}
		a.l.Info("price stream started", applogger.Int("symbols", len(a.cfg.Finnhub.Symbols)))
	} else {
		close(a.done)
	}

	a.httpServer = xhttp.NewServer(a.c.Handler,
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(a.cfg.Server.CORS, a.cfg.Server.CORSOrigins...),
		xhttp.WithMetrics(a.cfg.Metrics.Enabled),
		xhttp.WithSlowThreshold(a.cfg.Server.SlowThreshold),
		xhttp.WithLogger(a.l),
	)
	return a.httpServer.Start()
}

func (a *App) refresh(ctx context.Context) {
	start := time.Now()
	changed, err := a.c.Engine.RefreshCatalog(ctx)
	if err != nil {
		a.l.Error("catalog refresh failed", applogger.Error(err))
		return
	}
	if len(changed) > 0 {
		a.l.Info("catalog refreshed",
			applogger.Strings("changed", changed),
			applogger.Duration("took", time.Since(start)),
		)
	}
}

// Shutdown stops intake first, then drains pending writes.
func (a *App) Shutdown(ctx context.Context) error {
	a.l.Info("shutting down")
	var errs []error

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.cron != nil {
		select {
		case <-a.cron.Stop().Done():
		case <-ctx.Done():
			a.l.Warn("scheduler stop timeout")
		}
	}
	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("kafka consumer stop: %w", err))
		}
	}
	if a.cancel != nil {
		a.cancel()
	}
	select {
	case <-a.done:
	case <-ctx.Done():
	}
	if err := a.c.Writer.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("writer drain: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		a.l.Error("shutdown finished with errors", applogger.Error(err))
		return err
	}
	a.l.Info("shutdown complete")
	return nil
}

// cronLogger adapts the app logger to cron.Logger.
type cronLogger struct{ l *applogger.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kv(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(kv(keysAndValues), applogger.Error(err))...)
}

func kv(pairs []interface{}) []applogger.Field {
	out := make([]applogger.Field, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			key = fmt.Sprint(pairs[i])
		}
		out = append(out, applogger.Any(key, pairs[i+1]))
	}
	return out
}
