package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/docwiz/wizsync/internal/journal"
	"github.com/docwiz/wizsync/internal/prompt"
	"github.com/docwiz/wizsync/internal/remote"
	"github.com/docwiz/wizsync/internal/report"
)

// maxLoginAttempts bounds interactive retries after a rejected password.
const maxLoginAttempts = 3

// connect resolves the configured endpoint and authenticates. Configured
// credentials are tried once; otherwise p asks for them.
func connect(ctx context.Context, p *prompt.Prompter) (*remote.Session, error) {
	ep, err := cfg.ResolveEndpoint()
	if err != nil {
		return nil, err
	}

	client, err := remote.New(ep.URL, ep.Base, remote.Options{
		Timeout: cfg.RequestTimeout,
		Logger:  logger.Slog(),
	})
	if err != nil {
		return nil, err
	}
	logger.Slog().Info("Using endpoint", "endpoint", ep.Name, "url", client.BaseURL())

	if cfg.HasCredentials() {
		session, err := client.Authenticate(ctx, cfg.User, cfg.Password)
		if err != nil {
			return nil, fmt.Errorf("login as %s failed: %w", cfg.User, err)
		}
		logger.Slog().Info("Authenticated", "user", session.User())
		return session, nil
	}

	for attempt := 1; attempt <= maxLoginAttempts; attempt++ {
		creds, err := p.Credentials(ctx, cfg.User)
		if err != nil {
			return nil, fmt.Errorf("reading credentials: %w", err)
		}

		session, err := client.Authenticate(ctx, creds.User, creds.Password)
		if err == nil {
			logger.Slog().Info("Authenticated", "user", session.User())
			return session, nil
		}
		if !errors.Is(err, remote.ErrUnauthorized) {
			return nil, err
		}
		logger.Slog().Warn("Invalid credentials", "user", creds.User, "attempt", attempt)
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", maxLoginAttempts, remote.ErrUnauthorized)
}

func newPrompter() *prompt.Prompter {
	return prompt.New(os.Stdin, os.Stderr)
}

// openSinks returns the reporter every sync event flows through: the console
// logger plus the journal when enabled. The cleanup func is always non-nil.
func openSinks() (report.Reporter, func(), error) {
	if !cfg.Journal.Enabled {
		return logger, func() {}, nil
	}

	j, err := journal.Open(cfg.JournalPath(), logger.Slog())
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := j.Close(); err != nil {
			logger.Slog().Warn("Failed to close journal", "error", err)
		}
	}
	return report.Multi(logger, j), cleanup, nil
}
