// Command engine hosts the intraday decision-support pipeline: the
// scheduler driving ingestion and analysis, the operator HTTP surface,
// and the prometheus endpoint.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"optionsdesk/api"
	"optionsdesk/broker"
	"optionsdesk/config"
	"optionsdesk/logger"
	"optionsdesk/metrics"
	"optionsdesk/scheduler"
	"optionsdesk/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Errorf("invalid configuration: %v", err)
		os.Exit(1)
	}
	logger.Init(cfg.Environment)

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Errorf("opening store at %s: %v", cfg.DatabasePath, err)
		os.Exit(1)
	}
	defer st.Close()

	b := buildBroker(cfg)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Connect(ctx); err != nil {
		// The fetch activity retries every tick; a down vendor at boot
		// is not fatal.
		logger.Warnf("broker connect failed, will retry on fetch ticks: %v", err)
	}
	defer b.Disconnect()

	engine := scheduler.NewEngine(cfg, b, st)
	server := api.NewServer(cfg, engine)
	defer server.Hub().Close()

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: server.Router()}
	metricsSrv := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("http surface listening on %s", cfg.HTTPAddr)
		errCh <- httpSrv.ListenAndServe()
	}()
	go func() {
		logger.Infof("metrics listening on %s", cfg.MetricsAddr)
		errCh <- metricsSrv.ListenAndServe()
	}()

	sched := scheduler.New(cfg, engine)
	go func() {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("scheduler stopped: %v", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Infof("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			// Ports unavailable or similar unrecoverable startup error.
			logger.Errorf("http server failed: %v", err)
			stop()
			shutdownServers(httpSrv, metricsSrv)
			os.Exit(1)
		}
	}

	shutdownServers(httpSrv, metricsSrv)
}

func buildBroker(cfg *config.Config) broker.Broker {
	baseURL := os.Getenv("BROKER_BASE_URL")
	if baseURL == "" {
		logger.Infof("no BROKER_BASE_URL configured, using the stub broker")
		return broker.NewStubBroker("BANKNIFTY", 51500)
	}
	return broker.NewHTTPBroker(baseURL, os.Getenv("BROKER_API_KEY"), "BANKNIFTY")
}

func shutdownServers(servers ...*http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, s := range servers {
		_ = s.Shutdown(shutdownCtx)
	}
}
