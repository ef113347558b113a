package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Cardinal-Cryptography/aleph-node/pkg/logging"
)

// Server serves the /metrics endpoint for prometheus.
type Server struct {
	server *http.Server
	log    zerolog.Logger
}

// NewServer creates a server listening on the given address.
func NewServer(addr string, log zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		server: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		log:    log,
	}
}

// Start serves the endpoint in the background.
func (s *Server) Start() error {
	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Err(err).Str(logging.Where, "metrics.Server").Msg("metrics server failed")
		}
	}()
	s.log.Info().Str("address", s.server.Addr).Msg("metrics server started")
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.server.Shutdown(ctx)
}
