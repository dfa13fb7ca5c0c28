// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

// beacond hosts reservation beacons for game sessions and advertises them in
// the session directory. Game servers create a session over HTTP; clients
// reserve through the websocket beacon endpoint.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ludare/partybeacon/pkg/config"
	"github.com/ludare/partybeacon/pkg/directory"
	"github.com/ludare/partybeacon/pkg/metrics"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("could not load .env file")
	}

	cfg, err := config.Parse()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})

	var dir directory.SessionDirectory
	if cfg.RedisAddr != "" {
		dir = directory.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
		logrus.WithField("addr", cfg.RedisAddr).Info("using redis session directory")
	} else {
		dir = directory.NewMemory()
		logrus.Info("using in-memory session directory")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	met := metrics.NewMetrics(registry)

	srv := newServer(cfg, dir, met)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	router.Route("/sessions", func(r chi.Router) {
		r.Post("/", srv.handleCreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Delete("/", srv.handleDestroySession)
			r.Get("/stats", srv.handleSessionStats)
			r.Post("/proceed", srv.handleGrantProceed)
			r.Get("/beacon", srv.handleBeacon)
		})
	})

	httpSrv := &http.Server{
		Addr:    cfg.BeaconListenAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logrus.WithField("addr", cfg.BeaconListenAddr).Info("beacond listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("http shutdown incomplete")
	}
	srv.Close(shutdownCtx)
}
