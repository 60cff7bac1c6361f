package health

import (
	httpgo "net/http"

	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/go-kratos/swagger-api/openapiv2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	*http.Server
}

// NewServer serves liveness, readiness, Prometheus metrics and the API
// explorer on addr. ready is closed once the rtl_tcp listener is bound;
// nil means always ready.
func NewServer(addr string, ready <-chan struct{}) *Server {
	s := http.NewServer(http.Address(addr))

	s.HandlePrefix("/q/", openapiv2.NewHandler())
	s.Handle("/metrics", promhttp.Handler())
	s.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(httpgo.StatusOK)
	})
	s.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if ready == nil {
			w.WriteHeader(httpgo.StatusOK)
			return
		}

		select {
		case <-ready:
			w.WriteHeader(httpgo.StatusOK)
		default:
			w.WriteHeader(httpgo.StatusServiceUnavailable)
		}
	})

	return &Server{s}
}
