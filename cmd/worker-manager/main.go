// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tax-matching-workers/internal/bootstrap"
	"tax-matching-workers/internal/common/camunda"
	"tax-matching-workers/internal/common/config"
	"tax-matching-workers/internal/common/logger"
	"tax-matching-workers/internal/common/observability"
	"tax-matching-workers/internal/matching"
	"tax-matching-workers/pkg/registry"

	gm "tax-matching-workers/internal/workers/matching/generate-matches"
	gr "tax-matching-workers/internal/workers/matching/get-recommendations"
	ms "tax-matching-workers/internal/workers/matching/matching-stats"
	rm "tax-matching-workers/internal/workers/matching/regenerate-matches"
)

const activityRegistryPath = "configs/activity-registry.json"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.Observability.ServiceName, log,
		observability.WithTracing(cfg.Observability.TracingEnabled),
	)

	ctx := context.Background()

	deps, err := bootstrap.Connect(ctx, cfg, bootstrap.DefaultRetryPolicy, log)
	if err != nil {
		zapLog.Fatal("backing services unavailable", zap.Error(err))
	}
	defer deps.Close()
	zapLog.Info("Backing services connected",
		zap.String("candidateSource", cfg.Matching.CandidateSource),
		zap.Bool("cacheEnabled", cfg.Matching.CacheEnabled),
		zap.Bool("snsEnabled", cfg.Events.SNS.Enabled),
	)

	service, err := bootstrap.NewService(cfg, deps, log,
		matching.WithTracer(obs.Tracer("tax-matching-workers/matching")),
	)
	if err != nil {
		zapLog.Fatal("matching service setup failed", zap.Error(err))
	}

	zeebe, err := camunda.NewClientFromConfig(cfg.Camunda)
	if err != nil {
		zapLog.Fatal("zeebe client failed", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	workers := camunda.NewWorkerSet(log)
	registerWorkers(workers, cfg, zeebe, service, obs, log)
	checkActivityRegistry(activityRegistryPath, workers.TaskTypes(), zapLog)

	if err := workers.Start(); err != nil {
		zapLog.Fatal("worker registration failed", zap.Error(err))
	}
	zapLog.Info("Matching workers registered", zap.Int("running", workers.Running()))

	server := newHealthServer(cfg.Observability.MetricsAddr, zeebe, deps)
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	workers.Stop()
	service.Wait()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error flushing telemetry", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func registerWorkers(set *camunda.WorkerSet, cfg *config.Config, zeebe *camunda.Client, service *matching.Service, obs *observability.Observability, log logger.Logger) {
	must := func(h camunda.JobHandler, err error) {
		if err != nil {
			log.Error("failed to create worker", map[string]interface{}{"error": err})
			os.Exit(1)
		}
		set.Add(h)
	}

	must(gm.NewHandler(gm.HandlerOptions{
		AppConfig: cfg, Camunda: zeebe, Logger: log, Service: service, Observability: obs,
	}))
	must(rm.NewHandler(rm.HandlerOptions{
		AppConfig: cfg, Camunda: zeebe, Logger: log, Service: service, Observability: obs,
	}))
	must(gr.NewHandler(gr.HandlerOptions{
		AppConfig: cfg, Camunda: zeebe, Logger: log, Service: service, Observability: obs,
	}))
	must(ms.NewHandler(ms.HandlerOptions{
		AppConfig: cfg, Camunda: zeebe, Logger: log, Service: service, Observability: obs,
	}))
}

// checkActivityRegistry warns about workers missing from the activity
// catalogue. A missing or broken catalogue never stops the manager.
func checkActivityRegistry(path string, taskTypes []string, zapLog *zap.Logger) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		zapLog.Warn("Activity registry not loaded", zap.String("path", path), zap.Error(err))
		return
	}
	if missing := reg.Undeclared(taskTypes); len(missing) > 0 {
		zapLog.Warn("Workers missing from activity registry", zap.Strings("taskTypes", missing))
	}
}

func newHealthServer(addr string, zeebe *camunda.Client, deps *bootstrap.Dependencies) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := map[string]string{}
		ready := true
		record := func(name string, err error) {
			if err != nil {
				checks[name] = err.Error()
				ready = false
				return
			}
			checks[name] = "ok"
		}

		record("postgres", deps.Postgres.Ping(ctx))
		record("zeebe", zeebe.HealthCheck(ctx))
		if deps.Redis != nil {
			record("redis", deps.Redis.Ping(ctx))
		}
		if deps.Elasticsearch != nil {
			record("elasticsearch", deps.Elasticsearch.Ping(ctx))
		}

		if !ready {
			writeStatus(w, http.StatusServiceUnavailable, "not ready", checks)
			return
		}
		writeStatus(w, http.StatusOK, "ready", checks)
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func writeStatus(w http.ResponseWriter, code int, status string, checks map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
		"time":   time.Now().Format(time.RFC3339),
	})
}
