// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-passkey/internal/config"
	"github.com/jeremyhahn/go-passkey/internal/rest"
	"github.com/jeremyhahn/go-passkey/pkg/health"
	"github.com/jeremyhahn/go-passkey/pkg/logging"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/jeremyhahn/go-passkey/pkg/ratelimit"
)

// serveCmd starts the HTTP server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the passkey HTTP server",
	Long: `Start the WebAuthn relying party server.

Configuration is read from the --config file when given, otherwise from
built-in defaults. PASSKEY_* environment variables override both.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(logging.Options{
		Debug:           strings.EqualFold(cfg.Logging.Level, "debug"),
		RedactSensitive: cfg.Logging.RedactEnabled(),
		JSON:            strings.EqualFold(cfg.Logging.Format, "json"),
	})

	// In-memory stores; all state is lost on restart
	store := passkey.NewMemoryStore()
	challenges := passkey.NewMemoryChallengeStore(cfg.WebAuthn.ChallengeTTL)

	signingKey := []byte(cfg.Session.Secret)
	if len(signingKey) == 0 {
		// Ephemeral key: restarting the server invalidates issued sessions
		signingKey = make([]byte, 32)
		if _, err := rand.Read(signingKey); err != nil {
			return fmt.Errorf("failed to generate session signing key: %w", err)
		}
		logger.Warn("No session secret configured, using an ephemeral signing key")
	}

	issuer, err := passkey.NewJWTSessionIssuer(&passkey.JWTSessionIssuerConfig{
		SigningKey: signingKey,
		Issuer:     cfg.Session.Issuer,
		Audience:   cfg.Session.Audience,
		ExpiresIn:  cfg.Session.ExpiresIn,
	})
	if err != nil {
		return err
	}

	svc, err := passkey.NewService(passkey.ServiceParams{
		Config: &passkey.Config{
			RPDisplayName:          cfg.WebAuthn.RPDisplayName,
			ChallengeTTL:           cfg.WebAuthn.ChallengeTTL,
			UserVerification:       cfg.WebAuthn.UserVerification,
			ResidentKeyRequirement: cfg.WebAuthn.ResidentKey,
			AttestationPreference:  cfg.WebAuthn.AttestationPreference,
			StrictCredentialMatch:  cfg.WebAuthn.StrictCredentialMatch,
			RejectCounterRollback:  cfg.WebAuthn.RejectCounterRollback,
			Debug:                  strings.EqualFold(cfg.Logging.Level, "debug"),
		},
		UserStore:       store,
		CredentialStore: store,
		ChallengeStore:  challenges,
		SessionIssuer:   issuer,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	var checker *health.Checker
	if cfg.Health.Enabled {
		checker = health.NewChecker()
		registerStoreChecks(checker, store, challenges)
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(&ratelimit.Config{
			Enabled:           true,
			RequestsPerMinute: cfg.RateLimit.RequestsPerMin,
			Burst:             cfg.RateLimit.Burst,
		})
		defer limiter.Stop()
	}

	collectorCtx, cancelCollector := context.WithCancel(context.Background())
	defer cancelCollector()
	if cfg.Metrics.Enabled {
		metrics.StartResourceCollector(collectorCtx, 30*time.Second, store, challenges)
	} else {
		metrics.Disable()
	}

	server, err := rest.NewServer(&rest.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Service:        svc,
		Logger:         logger,
		Checker:        checker,
		RateLimiter:    limiter,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		CertFile:       cfg.TLS.CertFile,
		KeyFile:        cfg.TLS.KeyFile,
		SecureCookies:  cfg.Session.CookieSecure,
		SessionTTL:     cfg.Session.ExpiresIn,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	logger.Info("Server started", "addr", server.Addr(), "version", Version)

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return err
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return server.Stop(shutdownCtx)
}

// registerStoreChecks wires readiness checks that exercise the stores
// instead of assuming them healthy: a user lookup against the credential
// store and a full issue/consume round trip against the challenge store.
func registerStoreChecks(checker *health.Checker, users passkey.UserStore, challenges passkey.ChallengeStore) {
	checker.RegisterCheck("credential-store",
		health.PingCheck("credential-store", func(ctx context.Context) error {
			if _, err := users.GetByUsername(ctx, "readiness"); err != nil && !passkey.IsUserNotFound(err) {
				return err
			}
			return nil
		}))
	checker.RegisterCheck("challenge-store",
		health.PingCheck("challenge-store", func(ctx context.Context) error {
			token, err := challenges.Issue(ctx, &passkey.PendingCeremony{
				Purpose:  passkey.PurposeAuthentication,
				Username: "readiness",
			})
			if err != nil {
				return err
			}
			_, err = challenges.Consume(ctx, token, passkey.PurposeAuthentication)
			return err
		}))
}
