package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"societycore/internal/adapters/httpapi"
	"societycore/internal/billing"
	"societycore/internal/blob"
	"societycore/internal/config"
	"societycore/internal/core"
	"societycore/internal/documents"
	"societycore/internal/events"
	"societycore/internal/exports"
	"societycore/internal/identity"
	"societycore/internal/notify"
	"societycore/internal/provisioning"
	"societycore/internal/settings"
	"societycore/pkg/logger"
)

// app owns every long lived dependency of the daemon.
type app struct {
	cfg          *config.Config
	lggr         logger.Logger
	registry     *prometheus.Registry
	store        core.Store
	blobs        blob.Store
	publisher    events.Publisher
	closeNotify  func() error
	svc          *core.Service
	directory    *identity.Directory
	provisioning *provisioning.Service
	billing      *billing.Service
	documents    *documents.Service
	settings     *settings.Service
	exports      *exports.Worker
}

func openApp(ctx context.Context, cfg *config.Config, lggr logger.Logger) (a *app, err error) {
	a = &app{cfg: cfg, lggr: lggr, registry: prometheus.NewRegistry(), closeNotify: func() error { return nil }}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := core.NewPrometheusMetricsRecorder(a.registry)
	if err != nil {
		return nil, err
	}

	if a.store, err = core.OpenPersistentStore(ctx, cfg.Storage, core.NewDefaultRulesEngine()); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if a.blobs, err = blob.Open(ctx, cfg.Blob); err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	if a.publisher, err = events.Open(cfg.Events, lggr.Named("events")); err != nil {
		return nil, fmt.Errorf("open event publisher: %w", err)
	}
	dispatcher, closeNotify, err := notify.Open(cfg.Notify, lggr.Named("notify"))
	if err != nil {
		return nil, fmt.Errorf("open dispatcher: %w", err)
	}
	a.closeNotify = closeNotify

	a.svc = core.NewService(a.store,
		core.WithLogger(lggr),
		core.WithMetricsRecorder(metrics),
		core.WithPublisher(a.publisher),
	)
	hasher := identity.NewHasher(identity.DefaultParams)
	a.directory = identity.NewDirectory(a.svc, dispatcher, cfg.Auth, identity.WithHasher(hasher), identity.WithLogger(lggr.Named("identity")))
	auth := a.directory.Config()
	a.settings = settings.New(a.svc, a.directory, dispatcher, auth.CodeTTL, auth.MaxCodeAttempts)
	a.provisioning = provisioning.New(a.svc, a.directory, provisioning.NewPrivilegedCreator(a.svc, a.directory, hasher))
	a.documents = documents.New(a.svc, a.blobs)
	a.exports = exports.NewWorker(a.svc, a.blobs)
	a.exports.Start()

	var opts []billing.Option
	if cfg.Billing.StripeSecretKey != "" {
		gw := billing.NewStripeGateway(cfg.Billing.StripeSecretKey, cfg.Billing.WebhookSecret, nil)
		opts = append(opts, billing.WithGateway(gw))
		if cfg.Billing.WebhookSecret != "" {
			opts = append(opts, billing.WithWebhookVerifier(gw))
		}
	} else {
		lggr.Infow("stripe key not set, online payments disabled")
	}
	a.billing = billing.New(a.svc, cfg.Billing, opts...)
	return a, nil
}

func (a *app) handler() http.Handler {
	return httpapi.NewRouter(httpapi.Services{
		Core:         a.svc,
		Directory:    a.directory,
		Settings:     a.settings,
		Provisioning: a.provisioning,
		Documents:    a.documents,
		Billing:      a.billing,
		Exports:      a.exports,
		Gatherer:     a.registry,
	})
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	if a.exports != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.exports.Stop(ctx))
		cancel()
	}
	errs = append(errs, a.closeNotify())
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
