package cfg

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"
)

// Oracle providers.
const (
	ProviderNone   = "none"
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
)

// Session stores.
const (
	SessionStoreMemory = "memory"
	SessionStoreBadger = "badger"
)

// Config holds the application configuration that sits alongside the
// go-core package configs.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string

	OracleProvider string
	ClaudeAPIKey   string
	ClaudeModel    string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string
	OracleTimeout  time.Duration
	OracleRPS      float64
	OracleBurst    int

	DatabaseURL       string
	MySQLDSN          string
	PatternCacheTTL   time.Duration
	KnownFailuresFile string

	SessionStore        string
	BadgerPath          string
	SessionIdleTTL      time.Duration
	SessionReapSchedule string

	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	SMTPFrom        string
	SMTPInsecure    bool
	EscalationTo    string
	SlackWebhookURL string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on /api routes (empty = no auth)")

	fs.StringVar(&c.OracleProvider, "oracle-provider", ProviderClaude, "language model provider (claude|openai|none)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude provider")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")
	fs.StringVar(&c.OpenAIAPIKey, "openai-api-key", "", "API key for the OpenAI-compatible provider")
	fs.StringVar(&c.OpenAIBaseURL, "openai-base-url", "", "base URL for the OpenAI-compatible provider (empty = api.openai.com)")
	fs.StringVar(&c.OpenAIModel, "openai-model", "llama-3.3-70b-versatile", "model for the OpenAI-compatible provider")
	fs.DurationVar(&c.OracleTimeout, "oracle-timeout", 20*time.Second, "timeout for a single language model call")
	fs.Float64Var(&c.OracleRPS, "oracle-rps", 5, "language model calls per second across all sessions (0 = unlimited)")
	fs.IntVar(&c.OracleBurst, "oracle-burst", 5, "burst size for oracle-rps")

	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = mysql-dsn or in-memory store)")
	fs.StringVar(&c.MySQLDSN, "mysql-dsn", "", "MySQL DSN for the CMS log database (requires parseTime=true)")
	fs.DurationVar(&c.PatternCacheTTL, "pattern-cache-ttl", time.Minute, "how long known failure patterns are cached")
	fs.StringVar(&c.KnownFailuresFile, "known-failures-file", "", "YAML seed file loaded at startup when the store has no known failures")

	fs.StringVar(&c.SessionStore, "session-store", SessionStoreMemory, "session store (memory|badger)")
	fs.StringVar(&c.BadgerPath, "badger-path", "", "directory for the badger session store")
	fs.DurationVar(&c.SessionIdleTTL, "session-idle-ttl", 2*time.Hour, "sessions idle longer than this are deleted")
	fs.StringVar(&c.SessionReapSchedule, "session-reap-schedule", "@every 10m", "cron schedule for idle session reaping")

	fs.StringVar(&c.SMTPHost, "smtp-host", "", "SMTP server for escalation email (empty = email disabled)")
	fs.IntVar(&c.SMTPPort, "smtp-port", 587, "SMTP server port")
	fs.StringVar(&c.SMTPUsername, "smtp-username", "", "SMTP username")
	fs.StringVar(&c.SMTPPassword, "smtp-password", "", "SMTP password")
	fs.StringVar(&c.SMTPFrom, "smtp-from", "", "sender address for escalation email")
	fs.BoolVar(&c.SMTPInsecure, "smtp-insecure", false, "allow SMTP without STARTTLS")
	fs.StringVar(&c.EscalationTo, "escalation-to", "", "comma-separated IT support addresses for escalation email")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for escalations")
}

// EscalationRecipients splits EscalationTo into trimmed, non-empty addresses.
func (c *Config) EscalationRecipients() []string {
	var out []string
	for _, a := range strings.Split(c.EscalationTo, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	errs = append(errs, c.validateOracle()...)

	// Only one backing database
	if c.DatabaseURL != "" && c.MySQLDSN != "" {
		errs = append(errs, errors.New("DATABASE_URL and MYSQL_DSN are mutually exclusive"))
	}
	if c.PatternCacheTTL < 0 {
		errs = append(errs, fmt.Errorf("invalid PATTERN_CACHE_TTL %s (must not be negative)", c.PatternCacheTTL))
	}

	switch c.SessionStore {
	case SessionStoreMemory:
	case SessionStoreBadger:
		if c.BadgerPath == "" {
			errs = append(errs, errors.New("BADGER_PATH is required when SESSION_STORE is badger"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid SESSION_STORE %q (must be memory or badger)", c.SessionStore))
	}
	if c.SessionIdleTTL <= 0 {
		errs = append(errs, fmt.Errorf("invalid SESSION_IDLE_TTL %s (must be positive)", c.SessionIdleTTL))
	}
	if strings.TrimSpace(c.SessionReapSchedule) == "" {
		errs = append(errs, errors.New("SESSION_REAP_SCHEDULE is required"))
	}

	// Email escalation is all-or-nothing
	if c.SMTPHost != "" {
		if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
			errs = append(errs, fmt.Errorf("invalid SMTP_PORT %d (must be 1..65535)", c.SMTPPort))
		}
		if c.SMTPFrom == "" {
			errs = append(errs, errors.New("SMTP_FROM is required when SMTP_HOST is set"))
		}
		if len(c.EscalationRecipients()) == 0 {
			errs = append(errs, errors.New("ESCALATION_TO is required when SMTP_HOST is set"))
		}
	} else if c.EscalationTo != "" {
		errs = append(errs, errors.New("ESCALATION_TO is set but SMTP_HOST is empty"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (c *Config) validateOracle() []error {
	var errs []error
	switch c.OracleProvider {
	case ProviderNone:
		return nil
	case ProviderClaude:
		if c.ClaudeAPIKey == "" {
			errs = append(errs, errors.New("CLAUDE_API_KEY is required"))
		}
		if c.ClaudeModel == "" {
			errs = append(errs, errors.New("CLAUDE_MODEL is required"))
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required"))
		}
		if c.OpenAIModel == "" {
			errs = append(errs, errors.New("OPENAI_MODEL is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid ORACLE_PROVIDER %q (must be claude, openai or none)", c.OracleProvider))
	}
	if c.OracleTimeout <= 0 || c.OracleTimeout > 5*time.Minute {
		errs = append(errs, fmt.Errorf("invalid ORACLE_TIMEOUT %s (must be in (0, 5m])", c.OracleTimeout))
	}
	if c.OracleRPS < 0 {
		errs = append(errs, fmt.Errorf("invalid ORACLE_RPS %g (must not be negative)", c.OracleRPS))
	}
	if c.OracleRPS > 0 && c.OracleBurst < 1 {
		errs = append(errs, fmt.Errorf("invalid ORACLE_BURST %d (must be at least 1)", c.OracleBurst))
	}
	return errs
}
