package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/linnemanlabs/go-core/log"
)

// Oracle operation names, used for metrics labels and LLMRequest.Purpose.
const (
	OpClassifyIntent        = "classify_intent"
	OpExtractIdentifiers    = "extract_identifiers"
	OpInterpretConfirmation = "interpret_confirmation"
	OpPhraseGreeting        = "phrase_greeting"
	OpPhraseThanks          = "phrase_thanks"
	OpPhraseWorkaround      = "phrase_workaround"
	OpPhraseEscalation      = "phrase_escalation_email"
	OpPhraseSummary         = "phrase_summary"
	OpPhraseNotice          = "phrase_mismatch_or_not_found"
	OpPhraseMissingID       = "phrase_missing_id"
	OpPhraseMissingSummary  = "phrase_missing_summary_ids"
)

var (
	// ErrNoProvider is returned by every oracle call when no LLM is configured.
	ErrNoProvider = errors.New("no language model configured")

	errEmptyOutput = errors.New("empty model output")
)

// OracleConfig bounds oracle calls.
type OracleConfig struct {
	// Timeout caps each call. Zero means no per-call timeout.
	Timeout time.Duration
	// RPS limits calls per second across all sessions. Zero disables limiting.
	RPS   float64
	Burst int
}

// Oracle wraps a Provider with per-call timeouts, a shared rate limit, and
// typed prompts. Every method returns an error instead of guessing; callers
// own the deterministic fallback.
type Oracle struct {
	provider Provider
	limiter  *rate.Limiter
	timeout  time.Duration
	hooks    Hooks
	logger   log.Logger
}

// NewOracle builds an Oracle. A nil provider makes every call fail with ErrNoProvider.
func NewOracle(provider Provider, cfg OracleConfig, hooks Hooks, logger log.Logger) *Oracle {
	o := &Oracle{
		provider: provider,
		timeout:  cfg.Timeout,
		hooks:    hooks,
		logger:   logger,
	}
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	return o
}

func (o *Oracle) complete(ctx context.Context, req *LLMRequest) (string, error) {
	if o.provider == nil {
		return "", ErrNoProvider
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%s: rate limit: %w", req.Purpose, err)
		}
	}

	start := time.Now()
	resp, err := o.provider.Send(ctx, req)
	var usage Usage
	if resp != nil {
		usage = resp.Usage
	}
	o.hooks.oracleCall(req.Purpose, time.Since(start).Seconds(), usage, err)
	if err != nil {
		return "", fmt.Errorf("%s: %w", req.Purpose, err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("%s: %w", req.Purpose, errEmptyOutput)
	}
	return text, nil
}

// fallback records that op's output could not be used.
func (o *Oracle) fallback(ctx context.Context, op string, err error) {
	o.hooks.fallback(op)
	if errors.Is(err, ErrNoProvider) {
		return
	}
	o.logger.Warn(ctx, "oracle fallback", "op", op, "error", err.Error())
}

// ClassifyIntent returns the message intent. An unrecognized label is an error.
func (o *Oracle) ClassifyIntent(ctx context.Context, text string) (Intent, error) {
	out, err := o.complete(ctx, &LLMRequest{
		Purpose:   OpClassifyIntent,
		System:    intentSystemPrompt,
		Prompt:    text,
		MaxTokens: 10,
	})
	if err != nil {
		return IntentNormal, err
	}
	in, ok := ParseIntent(out)
	if !ok {
		return IntentNormal, fmt.Errorf("%s: unrecognized label %q", OpClassifyIntent, out)
	}
	return in, nil
}

// ExtractIdentifiers returns the model's raw JSON answer; the Resolver parses it.
func (o *Oracle) ExtractIdentifiers(ctx context.Context, text string) (string, error) {
	return o.complete(ctx, &LLMRequest{
		Purpose:   OpExtractIdentifiers,
		System:    extractSystemPrompt,
		Prompt:    text,
		MaxTokens: 100,
	})
}

// InterpretConfirmation returns the model's raw label for a reply to q.
func (o *Oracle) InterpretConfirmation(ctx context.Context, text string, q Question) (string, error) {
	return o.complete(ctx, &LLMRequest{
		Purpose:   OpInterpretConfirmation,
		System:    confirmSystemPrompt,
		Prompt:    confirmPrompt(text, q),
		MaxTokens: 10,
	})
}

func (o *Oracle) PhraseGreeting(ctx context.Context, text string) (string, error) {
	return o.phrase(ctx, OpPhraseGreeting, greetingPrompt(text))
}

func (o *Oracle) PhraseThanks(ctx context.Context, text string) (string, error) {
	return o.phrase(ctx, OpPhraseThanks, thanksPrompt(text))
}

// PhraseWorkaround rewrites a stored workaround as a reply to the user's message.
func (o *Oracle) PhraseWorkaround(ctx context.Context, text, failureType, workaround string) (string, error) {
	return o.phrase(ctx, OpPhraseWorkaround, workaroundPrompt(text, failureType, workaround))
}

// PhraseEscalationEmail drafts the body of an escalation email.
func (o *Oracle) PhraseEscalationEmail(ctx context.Context, e *Escalation) (string, error) {
	return o.phrase(ctx, OpPhraseEscalation, escalationPrompt(e))
}

func (o *Oracle) PhraseSummary(ctx context.Context, f *SummaryFacts) (string, error) {
	return o.phrase(ctx, OpPhraseSummary, summaryPrompt(f))
}

// PhraseMismatchOrNotFound explains a lookup that could not be resolved.
func (o *Oracle) PhraseMismatchOrNotFound(ctx context.Context, n *Notice) (string, error) {
	return o.phrase(ctx, OpPhraseNotice, noticePrompt(n))
}

func (o *Oracle) PhraseMissingIDRequest(ctx context.Context, text string) (string, error) {
	return o.phrase(ctx, OpPhraseMissingID, missingIDPrompt(text))
}

func (o *Oracle) PhraseMissingSummaryIDs(ctx context.Context, text string) (string, error) {
	return o.phrase(ctx, OpPhraseMissingSummary, missingSummaryIDsPrompt(text))
}

func (o *Oracle) phrase(ctx context.Context, op, prompt string) (string, error) {
	return o.complete(ctx, &LLMRequest{
		Purpose:     op,
		System:      phraseSystemPrompt,
		Prompt:      prompt,
		MaxTokens:   400,
		Temperature: 0.3,
	})
}
