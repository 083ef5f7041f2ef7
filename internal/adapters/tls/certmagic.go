// Package tls serves the HTTP handler over HTTPS with certificates managed by
// CertMagic.
package tls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/caddyserver/certmagic"
	"github.com/libdns/azure"

	"github.com/jobrunner/leafsync/internal/domain"
)

// Config holds TLS configuration.
type Config struct {
	Domains  []string
	Email    string
	CacheDir string
	Staging  bool // Use Let's Encrypt staging environment
	DNS      DNSConfig
}

// DNSConfig holds Azure DNS provider configuration for DNS-01 challenges.
// Without a subscription the HTTP-01 and TLS-ALPN challenges are used.
type DNSConfig struct {
	SubscriptionID    string
	ResourceGroupName string
	ClientID          string // User Assigned Managed Identity client ID (optional)
}

// Enabled reports whether DNS-01 challenges are configured.
func (c DNSConfig) Enabled() bool {
	return c.SubscriptionID != "" && c.ResourceGroupName != ""
}

// Validate checks the settings needed to request certificates.
func (c Config) Validate() error {
	if len(c.Domains) == 0 {
		return &domain.ConfigError{Field: "tls.domains", Message: "no domains specified"}
	}
	if c.Email == "" {
		return &domain.ConfigError{Field: "tls.email", Message: "no email specified"}
	}
	return nil
}

// Server runs an http.Server with managed certificates.
type Server struct {
	cfg    Config
	srv    *http.Server
	magic  *certmagic.Config
	logger *slog.Logger
}

// NewServer prepares srv for HTTPS. The server keeps its handler and
// timeouts; only its TLS configuration is replaced.
func NewServer(cfg Config, srv *http.Server, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	magic := certmagic.NewDefault()
	if cfg.CacheDir != "" {
		magic.Storage = &certmagic.FileStorage{Path: cfg.CacheDir}
	}

	issuer := certmagic.ACMEIssuer{
		CA:     certmagic.LetsEncryptProductionCA,
		Email:  cfg.Email,
		Agreed: true,
	}
	if cfg.Staging {
		issuer.CA = certmagic.LetsEncryptStagingCA
	}
	if cfg.DNS.Enabled() {
		issuer.DNS01Solver = &certmagic.DNS01Solver{
			DNSManager: certmagic.DNSManager{
				DNSProvider: &azure.Provider{
					SubscriptionId:    cfg.DNS.SubscriptionID,
					ResourceGroupName: cfg.DNS.ResourceGroupName,
					ClientId:          cfg.DNS.ClientID, // Empty = System Assigned Managed Identity
				},
			},
		}
	}
	magic.Issuers = []certmagic.Issuer{certmagic.NewACMEIssuer(magic, issuer)}

	tlsConfig := magic.TLSConfig()
	tlsConfig.NextProtos = append([]string{"h2", "http/1.1"}, tlsConfig.NextProtos...)
	srv.TLSConfig = tlsConfig

	return &Server{cfg: cfg, srv: srv, magic: magic, logger: logger}, nil
}

// ListenAndServe obtains certificates for the configured domains and serves
// HTTPS until Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	challenge := "http-01/tls-alpn-01"
	if s.cfg.DNS.Enabled() {
		challenge = "dns-01"
	}
	s.logger.Info("obtaining certificates", "domains", s.cfg.Domains, "challenge", challenge)

	if err := s.magic.ManageSync(ctx, s.cfg.Domains); err != nil {
		return fmt.Errorf("managing certificates: %w", err)
	}

	s.logger.Info("starting HTTPS server", "address", s.srv.Addr)
	err := s.srv.ListenAndServeTLS("", "")
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
