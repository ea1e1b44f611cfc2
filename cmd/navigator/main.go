package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"route-navigator/internal/config"
	"route-navigator/internal/db"
	"route-navigator/internal/fleet"
	"route-navigator/internal/logging"
	"route-navigator/internal/metrics"
	"route-navigator/internal/nav"
	"route-navigator/internal/transport"

	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "").Error("config error", "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFile)

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.PublishInterval, cfg.DistanceTolerance, cfg.TimeTolerance)
	}

	// Stored routes are optional; without a database only routed
	// destinations can be navigated.
	var routes fleet.RouteSource
	if cfg.DatabaseURL != "" {
		sqlDB, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Error("db open error", "error", err)
			os.Exit(1)
		}
		defer sqlDB.Close()
		if err := db.Ping(ctx, sqlDB); err != nil {
			log.Error("db ping error", "error", err)
			os.Exit(1)
		}
		store, err := db.NewStore(sqlDB, cfg.RouteCacheSize, lookupMetrics(mcol))
		if err != nil {
			log.Error("route store error", "error", err)
			os.Exit(1)
		}
		routes = store
	} else {
		log.Warn("no database configured, stored routes unavailable")
	}

	conn, err := transport.Connect(cfg.NATSURL, cfg.SubjectPrefix, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol), log.With("component", "nats"))
	if err != nil {
		log.Error("nats error", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	mgr := fleet.NewManager(fleet.Options{
		Config:          cfg.Navigator(),
		Router:          conn.Router(cfg.RouterSubject, cfg.RouterTimeout),
		Routes:          routes,
		Publisher:       conn,
		PublishInterval: cfg.PublishInterval,
		QueueSize:       cfg.FixQueueSize,
		Metrics:         mcol,
		Log:             log,
	})

	fixSub, err := conn.SubscribeFixes(func(vehicle string, f nav.Fix) {
		if err := mgr.SubmitFix(vehicle, f); err != nil && !errors.Is(err, fleet.ErrStopped) {
			log.Warn("fix rejected", "vehicle", vehicle, "error", err)
		}
	})
	if err != nil {
		log.Error("subscribe fixes", "error", err)
		os.Exit(1)
	}
	ctlSub, err := conn.SubscribeControl(mgr)
	if err != nil {
		log.Error("subscribe control", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		_ = fixSub.Unsubscribe()
		_ = ctlSub.Unsubscribe()
		return nil
	})
	g.Go(func() error { return mgr.Run(gctx) })
	if mcol != nil {
		srv := mcol.Serve(cfg.MetricsAddr, log)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	log.Info("navigator running", "nats", cfg.NATSURL, "prefix", cfg.SubjectPrefix)

	if err := g.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("shutdown complete")
}

// lookupMetrics avoids handing the store a typed nil collector.
func lookupMetrics(c *metrics.Collector) db.LookupMetrics {
	if c == nil {
		return nil
	}
	return c
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) transport.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
