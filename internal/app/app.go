// Package app assembles the triage service from configuration. It is shared
// by the HTTP server and the interactive CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/packassist/internal/cfg"
	"github.com/linnemanlabs/packassist/internal/incident"
	"github.com/linnemanlabs/packassist/internal/incident/memstore"
	"github.com/linnemanlabs/packassist/internal/incident/pgstore"
	"github.com/linnemanlabs/packassist/internal/incident/sqlstore"
	"github.com/linnemanlabs/packassist/internal/llm/claude"
	"github.com/linnemanlabs/packassist/internal/llm/openai"
	"github.com/linnemanlabs/packassist/internal/notify"
	"github.com/linnemanlabs/packassist/internal/notify/email"
	"github.com/linnemanlabs/packassist/internal/notify/slack"
	"github.com/linnemanlabs/packassist/internal/postgres"
	"github.com/linnemanlabs/packassist/internal/session"
	"github.com/linnemanlabs/packassist/internal/session/badgerstore"
	sessionmem "github.com/linnemanlabs/packassist/internal/session/memstore"
	"github.com/linnemanlabs/packassist/internal/triage"
)

func noClose() error { return nil }

// OpenIncidentStore picks Postgres, MySQL or memory in that order.
func OpenIncidentStore(ctx context.Context, c *cfg.Config, L log.Logger) (incident.Store, func() error, error) {
	switch {
	case c.DatabaseURL != "":
		pool, err := postgres.NewPool(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres pool: %w", err)
		}
		st, err := pgstore.New(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("pgstore init: %w", err)
		}
		L.Info(ctx, "using postgres incident store")
		return st, func() error { pool.Close(); return nil }, nil

	case c.MySQLDSN != "":
		db, err := sqlstore.Open(c.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("sqlstore: underlying db: %w", err)
		}
		st, err := sqlstore.New(db)
		if err != nil {
			_ = sqlDB.Close()
			return nil, nil, err
		}
		L.Info(ctx, "using mysql incident store")
		return st, sqlDB.Close, nil

	default:
		L.Info(ctx, "using in-memory incident store (no database configured)")
		return memstore.New(), noClose, nil
	}
}

// OpenSessions opens the configured session repository.
func OpenSessions(ctx context.Context, c *cfg.Config, L log.Logger) (session.Repository, func() error, error) {
	switch c.SessionStore {
	case cfg.SessionStoreBadger:
		st, err := badgerstore.Open(badgerstore.Config{Path: c.BadgerPath, TTL: c.SessionIdleTTL})
		if err != nil {
			return nil, nil, err
		}
		L.Info(ctx, "using badger session store", "path", c.BadgerPath)
		return st, st.Close, nil
	case cfg.SessionStoreMemory, "":
		return sessionmem.New(), noClose, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", c.SessionStore)
	}
}

// NewProvider returns the configured language model client, or nil when
// the oracle is disabled.
func NewProvider(c *cfg.Config) (triage.Provider, error) {
	switch c.OracleProvider {
	case cfg.ProviderClaude:
		return claude.New(c.ClaudeAPIKey, c.ClaudeModel), nil
	case cfg.ProviderOpenAI:
		return openai.New(openai.Config{
			APIKey:  c.OpenAIAPIKey,
			Model:   c.OpenAIModel,
			BaseURL: c.OpenAIBaseURL,
		}), nil
	case cfg.ProviderNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", c.OracleProvider)
	}
}

// NewNotifier fans out to every configured channel. With none configured
// escalations are only logged.
func NewNotifier(c *cfg.Config, L log.Logger) (triage.Notifier, error) {
	var channels []notify.Channel
	if c.SMTPHost != "" {
		n, err := email.New(email.Config{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			Username: c.SMTPUsername,
			Password: c.SMTPPassword,
			From:     c.SMTPFrom,
			To:       c.EscalationRecipients(),
			Insecure: c.SMTPInsecure,
		})
		if err != nil {
			return nil, fmt.Errorf("email notifier: %w", err)
		}
		channels = append(channels, notify.Channel{Name: "email", Notifier: n})
	}
	if c.SlackWebhookURL != "" {
		channels = append(channels, notify.Channel{Name: "slack", Notifier: slack.New(c.SlackWebhookURL)})
	}
	if len(channels) == 0 {
		return notify.NewLogger(L), nil
	}
	return notify.NewFanout(L, channels...), nil
}

// SeedIfEmpty loads path into store unless the store already has known
// failures. An empty path is a no-op.
func SeedIfEmpty(ctx context.Context, store incident.Store, path string, L log.Logger) error {
	if path == "" {
		return nil
	}
	existing, err := store.KnownFailures(ctx)
	if err != nil {
		return fmt.Errorf("check known failures: %w", err)
	}
	if len(existing) > 0 {
		L.Info(ctx, "known failures present, skipping seed", "count", len(existing), "file", path)
		return nil
	}
	sf, err := LoadSeedFile(path)
	if err != nil {
		return err
	}
	if err := incident.Seed(ctx, store, sf); err != nil {
		return err
	}
	L.Info(ctx, "seeded store", "file", path, "known_failures", len(sf.KnownFailures), "cms_logs", len(sf.Logs))
	return nil
}

// LoadSeedFile opens and decodes a YAML seed file.
func LoadSeedFile(path string) (*incident.SeedFile, error) {
	f, err := os.Open(path) //nolint:gosec // G304: operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer func() { _ = f.Close() }()
	sf, err := incident.LoadSeed(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sf, nil
}

// Deps are the pieces NewService needs beyond configuration.
type Deps struct {
	Store    incident.Store
	Sessions session.Repository
	Provider triage.Provider
	Notifier triage.Notifier
	Hooks    triage.Hooks
	Logger   log.Logger
}

// NewService wires the dialogue controller and session handling.
func NewService(c *cfg.Config, d Deps) (*triage.Service, error) {
	if d.Store == nil || d.Sessions == nil || d.Notifier == nil {
		return nil, errors.New("app: store, sessions and notifier are required")
	}
	L := d.Logger
	if L == nil {
		L = log.Nop()
	}
	oracle := triage.NewOracle(d.Provider, triage.OracleConfig{
		Timeout: c.OracleTimeout,
		RPS:     c.OracleRPS,
		Burst:   c.OracleBurst,
	}, d.Hooks, L)

	ctrl := triage.NewController(triage.ControllerDeps{
		Store:    d.Store,
		Catalog:  incident.NewCatalog(d.Store, c.PatternCacheTTL),
		Oracle:   oracle,
		Notifier: d.Notifier,
		IDs:      incident.NewIDGenerator(time.Now),
		Hooks:    d.Hooks,
		Logger:   L,
	})
	return triage.NewService(d.Sessions, session.NewLocker(), ctrl, d.Store, d.Hooks, L), nil
}
