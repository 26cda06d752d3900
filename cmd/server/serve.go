package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Brownie44l1/anidex/internal/conf"
	"github.com/Brownie44l1/anidex/internal/datastore"
	"github.com/Brownie44l1/anidex/internal/feedback"
	"github.com/Brownie44l1/anidex/internal/handlers"
	"github.com/Brownie44l1/anidex/internal/logging"
	"github.com/Brownie44l1/anidex/internal/model"
	"github.com/Brownie44l1/anidex/internal/mqtt"
	"github.com/Brownie44l1/anidex/internal/observability/metrics"
	"github.com/Brownie44l1/anidex/internal/pokedex"
	"github.com/Brownie44l1/anidex/internal/session"
	"github.com/Brownie44l1/anidex/internal/storage"
)

const (
	shutdownTimeout    = 5 * time.Second
	integrationTimeout = 15 * time.Second
)

func runServe(ctx context.Context, settings *conf.Settings) error {
	log := logging.ForService("main")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}

	log.Info("loading model", "path", settings.Model.Path, "backend", settings.Model.Backend)
	classifier, err := model.Load(settings.Model)
	if err != nil {
		return err
	}
	defer func() {
		_ = classifier.Close()
		_ = model.ShutdownRuntime()
	}()
	m.SetModelLoaded(true)
	log.Info("classes", "labels", classifier.Labels())

	sinks, index, closeSinks := openSinks(ctx, settings)
	defer closeSinks()

	recorder, err := feedback.NewRecorder(settings.Feedback,
		feedback.WithSinks(sinks...),
		feedback.WithMetrics(m))
	if err != nil {
		return err
	}

	controller := session.NewController(classifier, recorder, classifier.Labels(), session.Options{
		Threshold:            settings.Dashboard.ConfidenceThreshold,
		RequireLowConfidence: settings.Dashboard.Feedback.RequireLowConfidence,
		Backend:              settings.Model.Backend,
		Metrics:              m,
	})

	cookies, err := handlers.NewCookieStore(settings.Server.SessionSecret, settings.Server.SessionTTL)
	if err != nil {
		return err
	}
	if settings.Server.SessionSecret == "" {
		log.Warn("server.sessionsecret not set, sessions will not survive a restart")
	}

	deps := handlers.Deps{
		Classifier: classifier,
		Controller: controller,
		Store:      session.NewStore(settings.Server.SessionTTL, settings.Server.SessionTTL/2, nil),
		Cookies:    cookies,
		Dex:        pokedex.Default(),
		Metrics:    m,
	}
	if index != nil {
		deps.Index = index
	}

	e, err := handlers.NewServer(settings.Server, handlers.NewHandler(deps), registry)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", settings.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	m.SetModelLoaded(false)
	return nil
}

// openSinks creates the optional feedback sinks. A sink that cannot be
// reached at startup is logged and skipped.
func openSinks(ctx context.Context, settings *conf.Settings) ([]feedback.Sink, *datastore.Store, func()) {
	log := logging.ForService("main")
	var sinks []feedback.Sink
	var closers []func()
	var index *datastore.Store

	if settings.Datastore.Type != conf.StoreNone {
		store, err := datastore.Open(settings.Datastore)
		if err != nil {
			log.Warn("feedback index disabled", "error", err)
		} else {
			index = store
			sinks = append(sinks, store)
			closers = append(closers, func() { _ = store.Close() })
		}
	}

	if settings.Mirror.Minio.Enabled {
		mctx, cancel := context.WithTimeout(ctx, integrationTimeout)
		mirror, err := storage.New(mctx, settings.Mirror.Minio)
		cancel()
		if err != nil {
			log.Warn("dataset mirror disabled", "error", err)
		} else {
			sinks = append(sinks, mirror)
			log.Info("dataset mirror enabled", "bucket", settings.Mirror.Minio.Bucket)
		}
	}

	if settings.MQTT.Enabled {
		client := mqtt.NewClient(mqtt.Config{
			Broker:   settings.MQTT.Broker,
			ClientID: settings.MQTT.ClientID,
			Username: settings.MQTT.Username,
			Password: settings.MQTT.Password,
		})
		mctx, cancel := context.WithTimeout(ctx, integrationTimeout)
		err := client.Connect(mctx)
		cancel()
		if err != nil {
			log.Warn("mqtt publisher disabled", "broker", settings.MQTT.Broker, "error", err)
		} else {
			publisher := mqtt.NewPublisher(client, settings.MQTT.Topic)
			sinks = append(sinks, publisher)
			closers = append(closers, publisher.Close)
			log.Info("mqtt publisher enabled", "broker", settings.MQTT.Broker, "topic", settings.MQTT.Topic)
		}
	}

	return sinks, index, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}
