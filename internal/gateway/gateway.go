// Package gateway is the single path to the language model: it assembles
// prompts within a budget, retries failed calls, and parses responses into
// closed schemas.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
	"unicode/utf8"

	"github.com/spigell/resume-tailor/internal/ai"
	"github.com/spigell/resume-tailor/internal/logger"
	"github.com/spigell/resume-tailor/internal/utils"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config tunes retries, pacing and prompt size.
type Config struct {
	MaxRetries        int           `mapstructure:"max-retries"`
	BaseDelay         time.Duration `mapstructure:"base-delay"`
	Multiplier        float64       `mapstructure:"multiplier"`
	Jitter            float64       `mapstructure:"jitter"`
	MaxRateLimitWait  time.Duration `mapstructure:"max-rate-limit-wait"`
	ContextBudget     int           `mapstructure:"context-budget"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests-per-minute"`
	MaxLogLength      int           `mapstructure:"max-log-length"`
}

// DefaultConfig returns the default gateway settings.
func DefaultConfig() Config {
	return Config{
		MaxRetries:       3,
		BaseDelay:        time.Second,
		Multiplier:       2,
		Jitter:           0.2,
		MaxRateLimitWait: 30 * time.Second,
		ContextBudget:    60000,
		Timeout:          2 * time.Minute,
		MaxLogLength:     200,
	}
}

const repairTemplate = "IMPORTANT: your previous answer could not be parsed. Respond again with %s. Return nothing else: no markdown fences, no commentary."

type Gateway struct {
	generator ai.Generator
	cfg       Config
	limiter   *rate.Limiter
	logger    *zap.Logger

	wait   func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// New creates a Gateway. Unset delays, multiplier and log length fall back to
// DefaultConfig. A zero MaxRetries, Timeout, ContextBudget or
// RequestsPerMinute disables retries, the deadline, the budget or pacing.
func New(generator ai.Generator, cfg Config, log *zap.Logger) *Gateway {
	defaults := DefaultConfig()
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaults.BaseDelay
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = defaults.Multiplier
	}
	if cfg.Jitter < 0 || cfg.Jitter >= 1 {
		cfg.Jitter = defaults.Jitter
	}
	if cfg.MaxRateLimitWait <= 0 {
		cfg.MaxRateLimitWait = defaults.MaxRateLimitWait
	}
	if cfg.MaxLogLength <= 0 {
		cfg.MaxLogLength = defaults.MaxLogLength
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &Gateway{
		generator: generator,
		cfg:       cfg,
		limiter:   limiter,
		logger:    logger.WithModel(log, "", generator.Model()),
		wait:      utils.WaitFor,
		jitter:    rand.Float64,
	}
}

// Generate assembles req, calls the model and decodes the answer with schema.
// A response that fails to decode is retried once with a repair instruction;
// if that also fails a *SchemaError carrying the last raw text is returned.
// On any error schema's destination is left untouched.
func (g *Gateway) Generate(ctx context.Context, req Request, schema Schema) error {
	repair := fmt.Sprintf(repairTemplate, schema.RepairHint())
	reserve := utf8.RuneCountInString(repair) + 2

	prompt, kept, err := assemble(req, g.cfg.ContextBudget, reserve)
	if err != nil {
		return err
	}

	log := logger.WithStage(g.logger, req.Name).With(zap.String("schema", schema.Name()))
	if dropped := len(req.Context) - len(kept); dropped > 0 {
		log.Info("dropped low relevance context to fit the budget",
			zap.Int("dropped", dropped),
			zap.Int("kept", len(kept)),
			zap.Int("budget", g.cfg.ContextBudget),
		)
	}

	log.Debug("model request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, g.cfg.MaxLogLength)),
	)

	raw, err := g.call(ctx, log, req.System, prompt)
	if err != nil {
		return err
	}

	parseErr := schema.Decode(raw)
	if parseErr == nil {
		return nil
	}

	log.Warn("model response does not match schema, repairing",
		zap.Error(parseErr),
		zap.String("response_preview", utils.TruncateForLog(raw, g.cfg.MaxLogLength)),
	)

	raw, err = g.call(ctx, log, req.System, prompt+"\n\n"+repair)
	if err != nil {
		return err
	}

	if err := schema.Decode(raw); err != nil {
		log.Error("model response does not match schema after repair", zap.Error(err))
		return &SchemaError{Schema: schema.Name(), Raw: raw, Err: err}
	}

	return nil
}

// GenerateText is Generate with a free-form text schema.
func (g *Gateway) GenerateText(ctx context.Context, req Request) (string, error) {
	var out string
	if err := g.Generate(ctx, req, Text(req.Name, &out, "", nil)); err != nil {
		return "", err
	}
	return out, nil
}

func (g *Gateway) call(ctx context.Context, log *zap.Logger, system, prompt string) (string, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	var lastErr error
	var hint time.Duration
	attempts := g.cfg.MaxRetries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := g.backoff(attempt-1, hint)
			log.Warn("retrying model call",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", attempts),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if err := g.wait(ctx, delay); err != nil {
				return "", &TimeoutError{Err: err}
			}
		}

		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return "", &TimeoutError{Err: err}
			}
		}

		started := time.Now()
		raw, err := g.generator.GenerateContent(ctx, system, prompt)
		if err == nil {
			log.Debug("model call succeeded",
				zap.Int("attempt", attempt),
				zap.Duration("took", time.Since(started)),
				zap.String("response_preview", utils.TruncateForLog(raw, g.cfg.MaxLogLength)),
			)
			return raw, nil
		}

		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", &TimeoutError{Err: err}
		}

		lastErr = err
		retry, retryAfter := g.retryable(err)
		if !retry {
			return "", &TransportError{Attempts: attempt, Err: err}
		}
		hint = retryAfter
	}

	return "", &TransportError{Attempts: attempts, Err: lastErr}
}

func (g *Gateway) retryable(err error) (bool, time.Duration) {
	var rateErr *ai.RateLimitError
	if errors.As(err, &rateErr) {
		if rateErr.RetryAfter > g.cfg.MaxRateLimitWait {
			return false, 0
		}
		return true, rateErr.RetryAfter
	}

	return errors.Is(err, ai.ErrTransient), 0
}

// backoff returns the delay before retry number n (1-based):
// base * multiplier^(n-1), scaled by a random factor in [1-jitter, 1+jitter].
// A provider hint longer than that wins.
func (g *Gateway) backoff(n int, hint time.Duration) time.Duration {
	delay := float64(g.cfg.BaseDelay) * math.Pow(g.cfg.Multiplier, float64(n-1))
	delay *= 1 + g.cfg.Jitter*(2*g.jitter()-1)

	d := time.Duration(delay)
	if hint > d {
		return hint
	}
	return d
}
