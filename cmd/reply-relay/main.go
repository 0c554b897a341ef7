// Package main is the entry point for the mail reply relay.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shineum/mail-reply-relay/internal/config"
	"github.com/shineum/mail-reply-relay/internal/provider"
	"github.com/shineum/mail-reply-relay/internal/provider/graph"
	"github.com/shineum/mail-reply-relay/internal/provider/mailgun"
	"github.com/shineum/mail-reply-relay/internal/provider/ses"
	"github.com/shineum/mail-reply-relay/internal/provider/stdout"
	"github.com/shineum/mail-reply-relay/internal/relay"
	"github.com/shineum/mail-reply-relay/internal/replay"
	"github.com/shineum/mail-reply-relay/internal/responder"
	"github.com/shineum/mail-reply-relay/internal/subject"
	relaytls "github.com/shineum/mail-reply-relay/internal/tls"
	"github.com/shineum/mail-reply-relay/internal/webhook"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Logging.Level)

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("mail-reply-relay stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	prov, err := selectProvider(ctx, cfg)
	if err != nil {
		return err
	}

	normalize, err := subject.FromNames(cfg.Subject.Normalize)
	if err != nil {
		return fmt.Errorf("invalid subject normalizers: %w", err)
	}

	opts := relay.Options{
		Address:      cfg.Mailgun.Address,
		Domain:       cfg.Mailgun.Domain,
		Key:          cfg.Mailgun.Key,
		API:          cfg.Mailgun.API,
		Logger:       slog.Default(),
		Provider:     prov,
		Normalize:    normalize,
		MaxBodyBytes: cfg.HTTP.MaxBodySize,
	}

	if cfg.SignatureEnabled() {
		guard, closeGuard, err := selectReplayGuard(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeGuard()
		opts.Verifier = webhook.NewVerifier(cfg.Mailgun.SigningKey,
			webhook.WithMaxAge(cfg.Mailgun.SignatureMaxAge),
			webhook.WithReplayGuard(guard),
		)
	}

	svc, err := relay.New(opts)
	if err != nil {
		return fmt.Errorf("failed to create relay: %w", err)
	}

	if err := registerRoutes(svc, cfg.Routes, normalize); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           newRouter(cfg.HTTP.Path, svc.Handler(relay.ReplyErrors)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tlsMode := "off"
	if cfg.TLS.Enabled {
		tlsConfig, err := relaytls.ServerConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			return fmt.Errorf("failed to setup TLS: %w", err)
		}
		srv.TLSConfig = tlsConfig
		tlsMode = "self-signed"
		if cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "" {
			tlsMode = "file"
		}
	}

	slog.Info("starting mail-reply-relay",
		"listen", cfg.HTTP.Listen,
		"path", cfg.HTTP.Path,
		"provider", svc.ProviderName(),
		"subjects", svc.Subjects(),
		"signature", cfg.SignatureEnabled(),
		"tls_mode", tlsMode,
	)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if srv.TLSConfig != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("received signal, initiating shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// selectProvider chooses the reply delivery backend based on configuration.
func selectProvider(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	switch cfg.Provider {
	case "mailgun", "":
		slog.Info("using Mailgun provider", "domain", cfg.Mailgun.Domain)
		return mailgun.New(mailgun.Config{
			APIHost: cfg.Mailgun.API,
			Domain:  cfg.Mailgun.Domain,
			Key:     cfg.Mailgun.Key,
		}), nil

	case "ses":
		if !cfg.SESConfigured() {
			return nil, errors.New("SES provider selected but SES_REGION is required")
		}
		slog.Info("using AWS SES provider",
			"region", cfg.SES.Region,
			"sender", cfg.SES.Sender,
		)
		p, err := ses.New(ctx, ses.SESProviderConfig{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
			Sender:          cfg.SES.Sender,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SES provider: %w", err)
		}
		return p, nil

	case "graph":
		if !cfg.GraphConfigured() {
			return nil, errors.New("graph provider selected but GRAPH_TENANT_ID, GRAPH_CLIENT_ID, GRAPH_CLIENT_SECRET, and GRAPH_SENDER are required")
		}
		slog.Info("using Microsoft Graph provider", "sender", cfg.Graph.Sender)
		return graph.New(graph.GraphProviderConfig{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
			Sender:       cfg.Graph.Sender,
		}), nil

	case "stdout":
		slog.Info("using stdout provider")
		return stdout.New(), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// selectReplayGuard returns the Redis guard when a URL is configured and the
// in-memory guard otherwise. The returned func releases the guard.
func selectReplayGuard(ctx context.Context, cfg *config.Config) (replay.Guard, func(), error) {
	if cfg.Replay.RedisURL == "" {
		slog.Info("using in-memory replay guard", "ttl", cfg.Replay.TTL)
		return replay.NewMemory(cfg.Replay.TTL), func() {}, nil
	}

	guard, err := replay.NewRedis(ctx, cfg.Replay.RedisURL, cfg.Replay.TTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect replay guard: %w", err)
	}
	slog.Info("using redis replay guard", "ttl", cfg.Replay.TTL)
	return guard, func() {
		if err := guard.Close(); err != nil {
			slog.Warn("failed to close replay guard", "error", err)
		}
	}, nil
}

// registerRoutes adds one template responder per configured route. Route
// subjects go through normalize so they match the dispatch keys.
func registerRoutes(svc *relay.Service, routes []config.Route, normalize subject.Normalizer) error {
	for _, rt := range routes {
		h, err := responder.New(rt.Subject, rt.Reply)
		if err != nil {
			return err
		}
		key := rt.Subject
		if normalize != nil {
			key = normalize(key)
		}
		if err := svc.On(key, h); err != nil {
			return fmt.Errorf("failed to register route: %w", err)
		}
	}
	return nil
}
