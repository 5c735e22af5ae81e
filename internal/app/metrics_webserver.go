package app

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthHandler answers liveness probes.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// startMetricsServer initializes and runs the metrics HTTP server, exposing
// the Prometheus registry alongside a health endpoint.
func (a *App) startMetricsServer(port int) {
	a.logger.Debug("Configuring metrics server.")
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf(":%d", port)

	go func() {
		a.logger.Info("🩺 Metrics server starting", "address", fmt.Sprintf("http://localhost%s/metrics", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			a.logger.Error("Metrics server failed", "error", err)
		}
	}()
}
