// cmd/engine-daemon/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	awsclients "application-engine/internal/common/aws"
	"application-engine/internal/common/config"
	"application-engine/internal/common/database"
	commonhttp "application-engine/internal/common/http"
	"application-engine/internal/common/logger"
	"application-engine/internal/common/observability"
	"application-engine/internal/engine"
	"application-engine/internal/engine/effects"
	"application-engine/internal/engine/lifecycle"
	"application-engine/internal/engine/payment"
	"application-engine/internal/engine/providers"
	"application-engine/internal/models"
	"application-engine/internal/server"
	"application-engine/internal/store"
	"application-engine/internal/template"
	"application-engine/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// builtinGuards are the predicates JSON definitions may reference by
// name.
func builtinGuards() []template.Guard {
	return []template.Guard{
		{
			Name: "hasAssignee",
			Check: func(app *models.Application) bool {
				return len(app.Assignees) > 0
			},
		},
		{
			Name: "externalDataComplete",
			Check: func(app *models.Application) bool {
				for _, entry := range app.ExternalData {
					if entry.Status != models.FetchSuccess {
						return false
					}
				}
				return true
			},
		},
	}
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting application engine...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("engine-daemon")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	appStore := store.NewPostgresStore(pg)
	if err := appStore.Migrate(ctx); err != nil {
		zapLog.Fatal("postgres migration failed", zap.Error(err))
	}

	// --- Init Elasticsearch audit sink (optional) ---
	var auditSink store.AuditSink
	if len(cfg.Database.Elasticsearch.Addresses) > 0 {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		auditSink = store.NewESAuditSink(esClient, cfg.Database.Elasticsearch.AuditIndex)
		zapLog.Info("Elasticsearch audit sink connected")
	}

	// --- Compile template definitions ---
	compiler := registry.NewCompiler()
	for _, g := range builtinGuards() {
		if err := compiler.RegisterGuard(g); err != nil {
			zapLog.Fatal("guard registration failed", zap.Error(err))
		}
	}

	templates := template.NewRegistry()
	if err := registry.LoadDir(cfg.Registry.TemplatesDir, compiler, templates); err != nil {
		zapLog.Fatal("template load failed", zap.Error(err))
	}
	zapLog.Info("Templates loaded", zap.Strings("typeIds", templates.TypeIDs()))

	// --- Data providers ---
	providerRegistry := providers.NewRegistry()
	orch := providers.New(
		providerRegistry,
		time.Duration(cfg.Providers.DefaultTimeout)*time.Millisecond,
		log,
		providers.WithMaxConcurrent(cfg.Providers.MaxConcurrent),
	)

	for _, src := range cfg.Providers.Sources {
		timeout := time.Duration(cfg.Providers.DefaultTimeout) * time.Millisecond
		if src.Timeout > 0 {
			timeout = time.Duration(src.Timeout) * time.Millisecond
		}
		client := commonhttp.NewClient(timeout)
		if err := providerRegistry.Register(src.Name, providers.HTTPSource(client, src.URL, src.APIKey)); err != nil {
			zapLog.Fatal("provider registration failed", zap.Error(err))
		}
		zapLog.Info("Data provider registered", zap.String("provider", src.Name))
	}

	if cfg.Payment.BaseURL != "" {
		charger := payment.NewHTTPCharger(
			cfg.Payment.BaseURL,
			cfg.Payment.APIKey,
			time.Duration(cfg.Payment.Timeout)*time.Millisecond,
		)
		fragment := payment.Fragment{
			LineItems: payment.LineItemsFromAnswers("payment.lineItems"),
		}
		if err := providerRegistry.Register(fragment.ProviderName(), fragment.Provider(charger)); err != nil {
			zapLog.Fatal("payment provider registration failed", zap.Error(err))
		}
		zapLog.Info("Payment charge provider registered", zap.String("provider", fragment.ProviderName()))
	}

	// --- Notification side effects ---
	effectRegistry := effects.NewRegistry()
	if cfg.Notifications.Email.Enabled {
		sesClient, err := awsclients.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		if err := effectRegistry.Register("notify.email", effects.NewEmailEffect(sesClient, cfg.Notifications.Email.FromEmail)); err != nil {
			zapLog.Fatal("effect registration failed", zap.Error(err))
		}
	}
	if cfg.Notifications.SMS.Enabled {
		snsClient, err := awsclients.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		if err := effectRegistry.Register("notify.sms", effects.NewSMSEffect(snsClient)); err != nil {
			zapLog.Fatal("effect registration failed", zap.Error(err))
		}
	}

	opts := []engine.Option{
		engine.WithEffects(effects.NewExecutor(effectRegistry, log)),
	}
	if auditSink != nil {
		opts = append(opts, engine.WithAuditSink(auditSink))
	}
	eng := engine.New(templates, appStore, orch, log, opts...)

	// --- HTTP API ---
	api := server.New(eng, log)
	apiServer := &http.Server{
		Addr:    cfg.App.ListenAddress,
		Handler: api.Handler(),
	}
	go func() {
		zapLog.Info("API listening", zap.String("address", apiServer.Addr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("api server failed", zap.Error(err))
		}
	}()

	// --- Lifecycle sweeper ---
	if cfg.Sweeper.Enabled {
		sweeper := lifecycle.NewSweeper(appStore, cfg.Sweeper.Schedule, cfg.Sweeper.BatchSize, log)
		if err := sweeper.Start(); err != nil {
			zapLog.Fatal("sweeper start failed", zap.Error(err))
		}
		defer sweeper.Stop()
		zapLog.Info("Lifecycle sweeper started", zap.String("schedule", cfg.Sweeper.Schedule))
	}

	// --- Metrics endpoint ---
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Metrics endpoint listening", zap.String("address", cfg.Metrics.Address))
		if err := http.ListenAndServe(cfg.Metrics.Address, nil); err != nil {
			zapLog.Error("metrics server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("api shutdown failed", zap.Error(err))
	}
}
