// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/garyellow/airquality-linebot-go/internal/alert"
	"github.com/garyellow/airquality-linebot-go/internal/buildinfo"
	"github.com/garyellow/airquality-linebot-go/internal/cache"
	"github.com/garyellow/airquality-linebot-go/internal/config"
	"github.com/garyellow/airquality-linebot-go/internal/dispatcher"
	"github.com/garyellow/airquality-linebot-go/internal/logger"
	"github.com/garyellow/airquality-linebot-go/internal/metrics"
	"github.com/garyellow/airquality-linebot-go/internal/openaq"
	"github.com/garyellow/airquality-linebot-go/internal/pipeline"
	"github.com/garyellow/airquality-linebot-go/internal/sentry"
	"github.com/garyellow/airquality-linebot-go/internal/webhook"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// pinger reports whether the air-quality provider answers.
type pinger interface {
	Ping(ctx context.Context) error
}

// cacheSizer reports how many locations the reply cache holds.
type cacheSizer interface {
	Len() int
}

// webhookHandler is the LINE callback endpoint with graceful draining.
type webhookHandler interface {
	Handle(c *gin.Context)
	Shutdown(ctx context.Context) error
}

// drainer finishes background work started by earlier requests.
type drainer interface {
	Shutdown(ctx context.Context) error
}

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg            *config.Config
	logger         *logger.Logger
	metrics        *metrics.Metrics
	registry       *prometheus.Registry
	provider       pinger
	cache          cacheSizer
	alerts         alert.Sink
	dispatcher     drainer
	webhookHandler webhookHandler
	server         *http.Server
	wg             sync.WaitGroup // Track background goroutines for graceful shutdown
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(logger.Options{
		Level:            cfg.LogLevel,
		BetterStackToken: cfg.BetterStackToken,
	})
	log = log.WithField("service", "airquality-linebot-go")
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}

	// Package-level slog.*Context calls get the same handler and context fields.
	slog.SetDefault(log.Logger)

	log.WithField("version", buildinfo.Version).
		WithField("commit", buildinfo.Commit).
		Info("Initializing application...")

	if err := sentry.Initialize(cfg.Sentry); err != nil {
		log.WithError(err).Warn("Failed to initialize Sentry, error tracking disabled")
	} else if sentry.IsEnabled() {
		log.WithField("environment", cfg.Sentry.Environment).Info("Sentry initialized")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewBuildInfoCollector())
	m := metrics.New(registry)

	provider := openaq.NewClient(cfg.Provider)
	log.WithField("base_url", provider.BaseURL()).Info("Provider client created")

	sink, err := alert.NewSink(cfg.Alert, log)
	if err != nil {
		return nil, fmt.Errorf("alert sink: %w", err)
	}
	alerts := alert.Instrument(sink, cfg.Alert.PublishTimeout, m, log)
	log.WithField("sink", alerts.Name()).
		WithField("topic", cfg.Alert.Topic).
		Info("Alert sink created")

	store := cache.NewMemoryStore()
	d := dispatcher.New(
		cfg.Bot,
		pipeline.New(provider, cfg.Provider.Timeout, m, log),
		store,
		alerts,
		m,
		log,
	)

	wh, err := webhook.NewHandler(webhook.HandlerConfig{
		ChannelSecret:  cfg.LineChannelSecret,
		ChannelToken:   cfg.LineChannelToken,
		WebhookTimeout: cfg.WebhookTimeout,
		Dispatcher:     d,
		Metrics:        m,
		Logger:         log,
	})
	if err != nil {
		_ = alerts.Close()
		return nil, fmt.Errorf("webhook: %w", err)
	}

	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	app := &Application{
		cfg:            cfg,
		logger:         log,
		metrics:        m,
		registry:       registry,
		provider:       provider,
		cache:          store,
		alerts:         alerts,
		dispatcher:     d,
		webhookHandler: wh,
	}

	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.newRouter(),
		ReadHeaderTimeout: config.WebhookHTTPRead,
		ReadTimeout:       config.WebhookHTTPRead,
		WriteTimeout:      config.WebhookHTTPWrite,
		IdleTimeout:       config.WebhookHTTPIdle,
	}

	log.Info("Initialization complete")
	return app, nil
}

// newRouter builds the Gin engine with middleware and routes.
func (a *Application) newRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(sentryMiddleware())
	router.Use(securityHeadersMiddleware())
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(a.logger))

	router.GET("/", a.serviceInfo)
	router.HEAD("/", a.serviceInfo)
	router.GET("/healthz", a.livenessCheck)
	router.HEAD("/healthz", a.livenessCheck)
	router.GET("/ready", a.readinessCheck)
	router.HEAD("/ready", a.readinessCheck)
	router.POST("/callback", a.webhookHandler.Handle)
	router.GET("/metrics",
		metricsAuthMiddleware(a.cfg.MetricsPassword != "", a.cfg.MetricsUsername, a.cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	return router
}

func (a *Application) serviceInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "airquality-linebot-go",
		"version": buildinfo.Version,
	})
}

// livenessCheck never checks dependencies, only that the process serves HTTP.
func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessProbe)
	defer cancel()

	if err := a.provider.Ping(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: provider unreachable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "provider unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"provider": "reachable",
		"cache": gin.H{
			"locations": a.cache.Len(),
		},
	})
}

// Run starts the HTTP server and background jobs and blocks until
// SIGINT/SIGTERM, then shuts down gracefully.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startBackgroundJobs(ctx)
	a.startHTTPServer()

	sig := a.waitForShutdownSignal()
	a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	cancel()
	a.wg.Wait()

	return a.shutdown()
}

// startBackgroundJobs starts all background goroutines tracked by WaitGroup.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	a.wg.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				a.logger.WithField("panic", r).Error("Panic in cache metrics job")
			}
		}()
		a.updateCacheSizeMetrics(ctx)
	})
}

// startHTTPServer starts the HTTP server in a goroutine.
func (a *Application) startHTTPServer() {
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("HTTP server error")
		}
	}()
}

// waitForShutdownSignal blocks until SIGINT/SIGTERM is received.
func (a *Application) waitForShutdownSignal() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return <-quit
}

// shutdown stops accepting requests, drains in-flight webhook events and the
// alert publishes they started, then closes the alert sink.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Waiting for webhook events to complete...")
	if err := a.webhookHandler.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Webhook handler shutdown timeout")
	}

	a.logger.Info("Waiting for alert publishes to complete...")
	if err := a.dispatcher.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Alert publish drain timeout")
	}

	var closeErr error
	if err := a.alerts.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "alert_sink").Error("Component close error")
		closeErr = fmt.Errorf("close alert sink: %w", err)
	}

	sentry.Flush(2 * time.Second)
	a.logger.Info("Shutdown complete")
	return closeErr
}

// updateCacheSizeMetrics refreshes the cache gauge until ctx is done.
func (a *Application) updateCacheSizeMetrics(ctx context.Context) {
	a.logger.Debug("Cache metrics job started")
	defer a.logger.Debug("Cache metrics job stopped")

	ticker := time.NewTicker(config.MetricsUpdateInterval)
	defer ticker.Stop()

	a.recordCacheSizeMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.recordCacheSizeMetrics()
		}
	}
}

func (a *Application) recordCacheSizeMetrics() {
	if a.metrics == nil {
		return
	}
	a.metrics.SetCacheEntries(a.cache.Len())
}
