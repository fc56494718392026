// Package server owns the HTTP listener lifecycle: route table construction,
// optional TLS (with encrypted private key support), and graceful shutdown
// on SIGINT/SIGTERM, adapted from the teacher's server.go.
package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NeapolitanIcecream/openbridge/internal/config"
	"github.com/NeapolitanIcecream/openbridge/internal/orchestrator"
)

const appVersion = "0.1.0"

// Server owns the http.Server and the route table built from a single
// Orchestrator instance.
type Server struct {
	config       *config.Manager
	orchestrator *orchestrator.Orchestrator
	logger       *slog.Logger
	server       *http.Server
}

// New builds a Server. configManager must already have Load succeeded.
func New(configManager *config.Manager, orch *orchestrator.Orchestrator, logger *slog.Logger) *Server {
	return &Server{config: configManager, orchestrator: orch, logger: logger}
}

// Start runs the server until it receives SIGINT/SIGTERM, then shuts down
// gracefully within a 10 second deadline.
func (s *Server) Start() error {
	cfg := s.config.Get()
	if cfg == nil {
		return errors.New("configuration not loaded")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mux := s.setupRoutes()

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}

	useTLS := cfg.TLSCertFile != ""
	if useTLS {
		tlsConfig, err := loadTLSConfig(cfg)
		if err != nil {
			return err
		}
		s.server.TLSConfig = tlsConfig
	}

	s.logger.Info("starting server", "address", addr, "tls", useTLS)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if useTLS {
			err = s.server.ListenAndServeTLS("", "")
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	s.logger.Info("server is shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("server exited")
	return nil
}

// Stop gracefully shuts the server down from within the same process
// (tests, embedding), waiting at most 5 seconds; `openbridge stop` does not
// call it and instead signals the serving process through process.Manager.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func loadTLSConfig(cfg *config.Settings) (*tls.Config, error) {
	certPEM, err := os.ReadFile(cfg.TLSCertFile)
	if err != nil {
		return nil, fmt.Errorf("read TLS_CERTFILE: %w", err)
	}
	keyPEM, err := os.ReadFile(cfg.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read TLS_KEYFILE: %w", err)
	}
	if cfg.TLSKeyFilePassword != "" {
		keyPEM, err = decryptPEMKey(keyPEM, cfg.TLSKeyFilePassword)
		if err != nil {
			return nil, err
		}
	}
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("load TLS key pair: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}

func decryptPEMKey(keyPEM []byte, password string) ([]byte, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, errors.New("TLS_KEYFILE is not a valid PEM file")
	}
	//nolint:staticcheck // no non-deprecated stdlib path for legacy encrypted PEM keys
	if !x509.IsEncryptedPEMBlock(block) {
		return keyPEM, nil
	}
	//nolint:staticcheck
	der, err := x509.DecryptPEMBlock(block, []byte(password))
	if err != nil {
		return nil, fmt.Errorf("decrypt TLS_KEYFILE with TLS_KEYFILE_PASSWORD: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: der}), nil
}
