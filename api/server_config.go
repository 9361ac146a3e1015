package api

import (
	"log/slog"
	"time"
)

// HTTPServerConfig configures the registrar HTTP server.
type HTTPServerConfig struct {
	// ListenAddr is the address the API listens on.
	ListenAddr string

	// MetricsAddr is the address for the Prometheus endpoint. Empty disables it.
	MetricsAddr string

	EnablePprof bool

	Log *slog.Logger

	// DrainDuration is how long to stay up after /drain (or shutdown) marks
	// the server not ready, so load balancers can notice.
	DrainDuration time.Duration

	// GracefulShutdownDuration bounds the wait for in-flight requests.
	GracefulShutdownDuration time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}
