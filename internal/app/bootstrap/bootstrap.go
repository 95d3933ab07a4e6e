package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	requestlifecycle "pqrsd/contexts/citizen-services/request-lifecycle-service"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/adapters/memory"
	metricsadapter "pqrsd/contexts/citizen-services/request-lifecycle-service/adapters/metrics"
	postgresadapter "pqrsd/contexts/citizen-services/request-lifecycle-service/adapters/postgres"
	workerapp "pqrsd/contexts/citizen-services/request-lifecycle-service/application/workers"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/services"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/ports"
	"pqrsd/internal/platform/config"
	"pqrsd/internal/platform/db"
	"pqrsd/internal/platform/httpserver"
	"pqrsd/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const shutdownTimeout = 10 * time.Second

type APIApp struct {
	server *httpserver.Server
	// loops run in-process when storage is memory and no separate worker can
	// see the outbox.
	loops   []loop
	closers []func() error
	logger  *slog.Logger
}

type WorkerApp struct {
	loops   []loop
	metrics *http.Server
	closers []func() error
	logger  *slog.Logger
}

type loop struct {
	name     string
	interval time.Duration
	run      func(context.Context) error
}

type storage struct {
	requests    ports.Repository
	audit       ports.AuditTrail
	attachments ports.AttachmentStore
	outbox      ports.OutboxRepository
	clock       ports.Clock
	ids         ports.IDGenerator
	radicados   ports.RadicadoGenerator
	close       func() error
}

type wiring struct {
	cfg      config.Config
	logger   *slog.Logger
	location *time.Location
	holidays services.HolidayCalendar
	registry *prometheus.Registry
	observer ports.TransitionObserver
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	rt, err := loadWiring("api")
	if err != nil {
		return nil, err
	}
	store, err := openStorage(ctx, rt.cfg, rt.logger)
	if err != nil {
		return nil, err
	}

	module := requestlifecycle.NewModule(requestlifecycle.Dependencies{
		Requests:     store.requests,
		Audit:        store.audit,
		Attachments:  store.attachments,
		Clock:        store.clock,
		IDGenerator:  store.ids,
		Radicados:    store.radicados,
		Holidays:     rt.holidays,
		Location:     rt.location,
		Observer:     rt.observer,
		NotifyBuffer: rt.cfg.NotifyBuffer,
		Logger:       rt.logger,
	})

	options := httpserver.Options{
		AllowedOrigins: rt.cfg.CORSAllowedOrigins,
		EnableSwagger:  rt.cfg.EnableSwagger,
	}
	if rt.registry != nil {
		options.Metrics = promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{})
	}

	app := &APIApp{
		server:  httpserver.New(module, options, rt.logger, normalizeAddr(rt.cfg.HTTPPort)),
		closers: []func() error{store.close},
		logger:  rt.logger,
	}
	if rt.cfg.StorageDriver == config.DriverMemory {
		loops, closePublisher, err := buildLoops(rt, store)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.loops = loops
		app.closers = append(app.closers, closePublisher)
	}
	return app, nil
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	rt, err := loadWiring("worker")
	if err != nil {
		return nil, err
	}
	if rt.cfg.StorageDriver != config.DriverPostgres {
		return nil, errors.New("worker requires STORAGE_DRIVER=postgres; memory storage runs its loops inside the api process")
	}
	store, err := openStorage(ctx, rt.cfg, rt.logger)
	if err != nil {
		return nil, err
	}
	loops, closePublisher, err := buildLoops(rt, store)
	if err != nil {
		_ = store.close()
		return nil, err
	}

	app := &WorkerApp{
		loops:   loops,
		closers: []func() error{closePublisher, store.close},
		logger:  rt.logger,
	}
	if rt.registry != nil {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))
		app.metrics = &http.Server{
			Addr:              normalizeAddr(rt.cfg.HTTPPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	return app, nil
}

func loadWiring(process string) (wiring, error) {
	cfg, err := config.Load()
	if err != nil {
		return wiring{}, err
	}
	logger := NewLogger(cfg.LogLevel).With("service", cfg.ServiceName, "process", process)

	location, err := cfg.Location()
	if err != nil {
		return wiring{}, err
	}
	dates, err := cfg.HolidayDates()
	if err != nil {
		return wiring{}, err
	}
	holidays := services.NewHolidayCalendar(dates...)
	logger.Info("holiday calendar loaded",
		"event", "bootstrap_holidays_loaded",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"holidays", holidays.Len(),
		"timezone", location.String(),
	)

	rt := wiring{
		cfg:      cfg,
		logger:   logger,
		location: location,
		holidays: holidays,
		observer: ports.NopObserver{},
	}
	if cfg.EnableMetrics {
		rt.registry = prometheus.NewRegistry()
		rt.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		rt.observer = metricsadapter.NewObserver(rt.registry)
	}
	return rt, nil
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		pg, err := db.Connect(ctx, cfg.PostgresDSN, db.Options{})
		if err != nil {
			return storage{}, err
		}
		repo := postgresadapter.NewRepository(pg.DB, logger)
		if err := repo.Migrate(ctx); err != nil {
			_ = pg.Close()
			return storage{}, err
		}
		return storage{
			requests:    repo,
			audit:       repo,
			attachments: repo,
			outbox:      repo,
			clock:       postgresadapter.SystemClock{},
			ids:         postgresadapter.UUIDGenerator{},
			radicados:   repo,
			close:       pg.Close,
		}, nil
	default:
		store := memory.NewStore(nil)
		return storage{
			requests:    store,
			audit:       store.Audit(),
			attachments: memory.NewAttachmentStore(),
			outbox:      store,
			clock:       store,
			ids:         store,
			radicados:   store,
			close:       func() error { return nil },
		}, nil
	}
}

func openPublisher(ctx context.Context, cfg config.Config, logger *slog.Logger) (ports.EventPublisher, func() error, error) {
	if cfg.MessagingDriver == config.DriverRedis {
		client, err := messaging.NewRedis(cfg.RedisURL, "", logger)
		if err != nil {
			return nil, nil, err
		}
		if err := client.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return client, client.Close, nil
	}
	return messaging.NewBus(0, logger), func() error { return nil }, nil
}

func buildLoops(rt wiring, store storage) ([]loop, func() error, error) {
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	publisher, closePublisher, err := openPublisher(pingCtx, rt.cfg, rt.logger)
	if err != nil {
		return nil, nil, err
	}

	var loops []loop
	if rt.cfg.EnableOutboxRelay {
		relay := workerapp.OutboxRelay{
			Outbox:    store.outbox,
			Publisher: publisher,
			Clock:     store.clock,
			BatchSize: rt.cfg.OutboxBatchSize,
			Logger:    rt.logger,
		}
		loops = append(loops, loop{
			name:     "outbox_relay",
			interval: rt.cfg.OutboxPollInterval,
			run:      relay.RunOnce,
		})
	}
	if rt.cfg.EnableDeadlineMonitor {
		monitor := workerapp.DeadlineMonitor{
			Requests: store.requests,
			Clock:    store.clock,
			Location: rt.location,
			Observer: rt.observer,
			Logger:   rt.logger,
		}
		loops = append(loops, loop{
			name:     "deadline_monitor",
			interval: rt.cfg.DeadlineScanInterval,
			run: func(ctx context.Context) error {
				_, err := monitor.RunOnce(ctx)
				return err
			},
		})
	}
	return loops, closePublisher, nil
}

// NewLogger builds the process JSON logger. Unknown levels fall back to info.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"loops", len(a.loops),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(a.server.Start)
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	for _, item := range a.loops {
		group.Go(func() error {
			return runLoop(groupCtx, item, a.logger)
		})
	}
	return group.Wait()
}

func (a *APIApp) Close() error {
	return closeAll(a.closers)
}

func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"loops", len(w.loops),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	for _, item := range w.loops {
		group.Go(func() error {
			return runLoop(groupCtx, item, w.logger)
		})
	}
	if w.metrics != nil {
		group.Go(func() error {
			err := w.metrics.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return w.metrics.Shutdown(shutdownCtx)
		})
	}
	return group.Wait()
}

func (w *WorkerApp) Close() error {
	return closeAll(w.closers)
}

// runLoop ticks item until ctx is done. A failed pass is logged and retried
// on the next tick; only cancellation stops the loop.
func runLoop(ctx context.Context, item loop, logger *slog.Logger) error {
	interval := item.interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("worker loop started",
		"event", "bootstrap_loop_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"loop", item.name,
		"interval", interval.String(),
	)
	for {
		if err := item.run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("worker loop pass failed",
				"event", "bootstrap_loop_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"loop", item.name,
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func closeAll(closers []func() error) error {
	var errs []error
	for _, closeFn := range closers {
		if closeFn == nil {
			continue
		}
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
