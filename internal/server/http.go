package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	conf "github.com/webitel/rocrate-exporter/config"
	"github.com/webitel/rocrate-exporter/internal/errors"
	"github.com/webitel/rocrate-exporter/internal/server/interceptor"
	"github.com/webitel/rocrate-exporter/registry"
)

const shutdownTimeout = 15 * time.Second

type Server struct {
	Router   *mux.Router
	server   *http.Server
	listener net.Listener
	exitChan chan error
	registry registry.ServiceRegistrator
}

// BuildServer opens the listener and prepares a router with the common
// middleware chain. reg may be nil when the service is not registered anywhere.
func BuildServer(config *conf.HTTPConfig, reg registry.ServiceRegistrator, exitChan chan error) (*Server, error) {
	listener, err := net.Listen("tcp", config.Address)
	if err != nil {
		return nil, errors.Internal(
			err.Error(),
			errors.WithID("server.build.listen.error"),
		)
	}

	r := mux.NewRouter()
	r.Use(interceptor.Recovery(), interceptor.Logging())
	r.NotFoundHandler = interceptor.Handle(func(http.ResponseWriter, *http.Request) error {
		return errors.New("route not found", errors.WithID("server.route.not_found"), errors.WithCode(http.StatusNotFound))
	})

	return &Server{
		Router: r,
		server: &http.Server{
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       config.ReadTimeout,
			WriteTimeout:      config.WriteTimeout,
		},
		listener: listener,
		exitChan: exitChan,
		registry: reg,
	}, nil
}

// Addr is the address the server listens on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start registers and starts the HTTP server
func (s *Server) Start() {
	if s.registry != nil {
		if err := s.registry.Register(); err != nil {
			s.exitChan <- err
			return
		}
	}
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.exitChan <- errors.Internal(
			err.Error(),
			errors.WithID("server.start.serve.error"),
		)
	}
}

// Stop deregisters the service and gracefully stops the HTTP server
func (s *Server) Stop() error {
	var regErr error
	if s.registry != nil {
		regErr = s.registry.Deregister()
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(regErr, s.server.Shutdown(ctx))
}
