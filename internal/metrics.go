package internal

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtltcp_sessions_total",
			Help: "Sessions served, by shutdown reason",
		},
		[]string{"reason"},
	)
	sessionActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rtltcp_session_active",
			Help: "1 while a client is connected",
		},
	)
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtltcp_commands_total",
			Help: "Command frames received, by operation and result",
		},
		[]string{"operation", "result"},
	)
	sampleBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rtltcp_sample_bytes_total",
			Help: "I/Q bytes handed to the connection writer",
		},
	)
	sampleBuffersDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rtltcp_sample_buffers_dropped_total",
			Help: "Device buffers discarded after shutdown was requested",
		},
	)
)

var commandDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "rtltcp_command_duration_seconds",
		Help:    "Time spent applying a command frame",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	},
	[]string{"operation"},
)

// CommandMetrics is a read filter observing how long each command takes.
func CommandMetrics() middleware.Middleware {
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req any) (any, error) {
			operation := "unknown"
			if tr, ok := transport.FromServerContext(ctx); ok {
				operation = tr.Operation()
			}

			start := time.Now()
			reply, err := next(ctx, req)
			commandDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

			return reply, err
		}
	}
}
