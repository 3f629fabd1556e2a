// Package server exposes the bootstrap state over HTTP: health, the services
// and instances the discovery client knows and the resolved Vault endpoint.
package server

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/animalet/sargantana-discovery/pkg/bootstrap"
	"github.com/animalet/sargantana-discovery/pkg/server/middleware"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 30 * time.Second

var debug = false

// SetDebug toggles debug mode and the global log level with it.
func SetDebug(debugEnabled bool) {
	debug = debugEnabled
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// GetDebug reports whether debug mode is on.
func GetDebug() bool {
	return debug
}

// Server is the status HTTP server.
type Server struct {
	config          WebServerConfig
	bootstrap       *bootstrap.Context
	httpServer      *http.Server
	listener        net.Listener
	shutdownHooks   []func() error
	shutdownChannel chan os.Signal
}

// NewServer creates a server for the given bootstrap context. Nothing listens
// until Start is called.
func NewServer(cfg WebServerConfig, bc *bootstrap.Context) *Server {
	return &Server{config: cfg, bootstrap: bc}
}

// Handler builds the gin engine with all routes.
func (s *Server) Handler() (http.Handler, error) {
	engine := gin.New()
	if gin.IsDebugging() {
		engine.Use(bodyLogMiddleware, gin.ErrorLogger())
	} else {
		if err := engine.SetTrustedProxies(nil); err != nil {
			return nil, err
		}
		engine.Use(gin.ErrorLoggerT(gin.ErrorTypePrivate))
	}
	engine.Use(
		gin.Logger(),
		gin.Recovery(),
		middleware.SecurityHeaders(s.config.ContentSecurityPolicy, s.config.AllowedHosts...),
	)
	newStatusController(s.bootstrap).bind(engine)
	return engine, nil
}

// StartAndWaitForSignal starts the server and shuts it down on SIGINT or
// SIGTERM.
func (s *Server) StartAndWaitForSignal() error {
	if err := s.Start(); err != nil {
		return err
	}
	return s.WaitForSignal()
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	handler, err := s.Handler()
	if err != nil {
		return err
	}

	address := s.config.ListenAddress()
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", address)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if s.bootstrap != nil {
		s.addShutdownHook(s.bootstrap.Close)
	}

	log.Info().Msgf("Starting server on %s", listener.Addr())
	s.serve()
	return nil
}

// Addr is the bound address once Start has returned.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) serve() {
	go func() {
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("Listen error: %s", err)
		}
	}()
}

// WaitForSignal blocks until SIGINT or SIGTERM, then shuts the server down.
func (s *Server) WaitForSignal() error {
	s.shutdownChannel = make(chan os.Signal, 1)
	signal.Notify(s.shutdownChannel, syscall.SIGINT, syscall.SIGTERM)
	log.Info().Msgf("Shutdown signal received (%s)", <-s.shutdownChannel)
	return s.Shutdown()
}

func (s *Server) addShutdownHook(f func() error) {
	s.shutdownHooks = append(s.shutdownHooks, f)
}

// Shutdown waits up to 30 seconds for active requests, then runs the
// shutdown hooks.
func (s *Server) Shutdown() error {
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("forced shutdown: %s", err)
		}
	}

	log.Info().Msg("Executing shutdown hooks...")
	for _, hook := range s.shutdownHooks {
		if err := hook(); err != nil {
			log.Error().Msgf("Error during shutdown hook: %s", err)
		}
	}

	log.Info().Msg("Server exited gracefully")
	return nil
}

type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func bodyLogMiddleware(c *gin.Context) {
	blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
	c.Writer = blw
	c.Next()
	log.Debug().Msgf("Response body: %s", blw.body.String())
}
