// Command threat-intel runs the threat intelligence aggregation
// service: HTTP API, feed collectors, enrichment coordinator, and
// background scheduler wired together.
//
// Grounded on services/threat-intel/main.go's startup/shutdown shape
// (signal.NotifyContext, OTLP tracer/metrics init, graceful shutdown).
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sentineltrace/threat-intel/internal/config"
	"github.com/sentineltrace/threat-intel/internal/enrichment"
	"github.com/sentineltrace/threat-intel/internal/feeds"
	"github.com/sentineltrace/threat-intel/internal/feeds/cache"
	"github.com/sentineltrace/threat-intel/internal/httpapi"
	"github.com/sentineltrace/threat-intel/internal/ingest"
	"github.com/sentineltrace/threat-intel/internal/logging"
	"github.com/sentineltrace/threat-intel/internal/scheduler"
	"github.com/sentineltrace/threat-intel/internal/store"
	"github.com/sentineltrace/threat-intel/internal/telemetry"
)

func main() {
	const service = "threat-intel"

	migrateOnly := flag.Bool("migrate", false, "apply schema migrations and exit")
	flag.Parse()

	log := logging.Init(service)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTrace := telemetry.InitTracer(ctx, service)
	shutdownMetrics, metrics := telemetry.InitMetrics(ctx, service)

	cfg := config.Load()

	db, err := store.Open(cfg.Database)
	if err != nil {
		log.Error("open database failed", "error", err)
		return
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Error("migration failed", "error", err)
		return
	}
	if *migrateOnly {
		log.Info("migration complete, exiting")
		return
	}

	enrichCache, err := cache.Open("./enrichment-cache.db")
	if err != nil {
		log.Warn("enrichment cache unavailable, running without it", "error", err)
		enrichCache = nil
	} else {
		defer enrichCache.Close()
	}

	providers := buildProviders(cfg, log)
	coordinator := enrichment.NewCoordinator(providers, enrichCache)

	collectors := []feeds.Collector{
		feeds.NewOTXCollector(cfg.Collectors.OTXAPIKey),
		feeds.NewEmergingThreatsCollector(),
		feeds.NewHoneytrapCollector(cfg.Collectors.HoneytrapAPIURL, cfg.Collectors.HoneytrapAPIKey, ""),
	}

	sched := scheduler.New(db, nil, coordinator, db, metrics, log, scheduler.Config{
		PurgeInterval:     cfg.Scheduler.PurgeInterval,
		FeedRefreshCron:   cfg.Scheduler.FeedRefreshCron,
		EnrichWorkerCount: cfg.Scheduler.EnrichWorkerCount,
	})

	orchestrator := ingest.New(db, sched, collectors, log)
	sched.SetRefresher(orchestrator)

	if err := sched.Start(ctx, cfg.Scheduler.EnrichWorkerCount); err != nil {
		log.Error("scheduler start failed", "error", err)
		return
	}
	defer sched.Stop()

	deps := httpapi.NewDeps(db, orchestrator, coordinator)
	server := httpapi.NewServer(deps, log)

	httpServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + itoa(cfg.Server.Port),
		Handler: server.Router(),
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
			cancel()
		}
	}()

	log.Info("service started", "addr", httpServer.Addr)
	<-ctx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	_ = httpServer.Shutdown(shutdownCtx)
	telemetry.Flush(shutdownCtx, shutdownTrace)
	_ = shutdownMetrics(shutdownCtx)
	log.Info("shutdown complete")
}

func buildProviders(cfg *config.Config, log *slog.Logger) []enrichment.Provider {
	var providers []enrichment.Provider

	if cfg.GeoIP.CityDBPath != "" || cfg.GeoIP.ASNDBPath != "" {
		geo, err := enrichment.NewGeoIPProvider(cfg.GeoIP.CityDBPath, cfg.GeoIP.ASNDBPath)
		if err != nil {
			log.Warn("geoip provider disabled", "error", err)
		} else {
			providers = append(providers, geo)
		}
	}

	providers = append(providers, enrichment.NewDNSProvider(), enrichment.NewWhoisProvider())

	if cfg.Providers.AbuseIPDBKey != "" {
		providers = append(providers, enrichment.NewAbuseIPDBProvider(cfg.Providers.AbuseIPDBKey))
	}
	if cfg.Providers.VirusTotalKey != "" {
		providers = append(providers, enrichment.NewVirusTotalProvider(cfg.Providers.VirusTotalKey))
	}

	return providers
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
