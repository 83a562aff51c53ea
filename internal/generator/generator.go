package generator

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"copydesk/internal/brief"
	"copydesk/internal/config"
	"copydesk/internal/deliverable"
	"copydesk/internal/faults"
	"copydesk/internal/logging"
)

const (
	defaultMaxFormatRetries = 2

	// ceilingRaiseFactor raises max_tokens by half when the first attempt
	// came back truncated. One raise only.
	ceilingRaiseNum = 3
	ceilingRaiseDen = 2
)

// Generator produces deliverables from generation contexts.
type Generator struct {
	client           *client
	maxOutputTokens  int
	maxFormatRetries int
	logger           *slog.Logger
}

// Option customizes the generator, mostly for tests.
type Option func(*Generator)

// WithHTTPClient overrides the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *Generator) { withHTTPClient(hc)(g.client) }
}

// WithRetry overrides transport retry behavior.
func WithRetry(attempts int, baseDelay, maxDelay time.Duration) Option {
	return func(g *Generator) { withRetry(attempts, baseDelay, maxDelay)(g.client) }
}

// WithSleeper overrides how retry sleeps are performed.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(g *Generator) { withSleeper(sleeper)(g.client) }
}

// New constructs a generator from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	retries := cfg.Generator.MaxFormatRetries
	if retries <= 0 {
		retries = defaultMaxFormatRetries
	}
	g := &Generator{
		client: newClient(clientConfig{
			APIKey:         cfg.Generator.APIKey,
			BaseURL:        cfg.Generator.BaseURL,
			Model:          cfg.Generator.Model,
			TimeoutSeconds: cfg.Generator.TimeoutSeconds,
		}),
		maxOutputTokens:  cfg.Generator.MaxOutputTokens,
		maxFormatRetries: retries,
		logger:           logging.NewComponentLogger(logger, "generator"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces the full eight-part deliverable for a context. Truncated
// output gets one retry with a raised ceiling; output that never parses after
// the format-retry budget is malformed; anything else is a service failure.
func (g *Generator) Generate(ctx context.Context, bctx *brief.Context) (*deliverable.Deliverable, error) {
	log := logging.WithContext(ctx, g.logger)
	prompt := userPrompt(bctx)
	maxTokens := g.maxOutputTokens

	for raise := 0; ; raise++ {
		content, finishReason, err := g.client.complete(ctx, systemPrompt, prompt, maxTokens)
		if err != nil {
			return nil, faults.Wrap(faults.ErrExternalService, "generating", "generate", "completion request failed", err)
		}
		if finishReason == finishLength {
			if raise == 0 {
				raised := maxTokens * ceilingRaiseNum / ceilingRaiseDen
				log.Warn("generation hit token ceiling, retrying once with raised ceiling",
					logging.Int("max_tokens", maxTokens),
					logging.Int("raised_max_tokens", raised))
				maxTokens = raised
				continue
			}
			return nil, faults.Wrap(faults.ErrGenerationTruncated, "generating", "generate",
				"output truncated at raised token ceiling", nil)
		}

		d, parseErr := deliverable.Parse(content)
		if parseErr == nil {
			return d, nil
		}
		d, err = g.reparseWithRetries(ctx, log, content, parseErr)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

// reparseWithRetries re-prompts for well-formed JSON, passing the parse error
// and the previous response back to the model. Bounded by the format budget.
func (g *Generator) reparseWithRetries(ctx context.Context, log *slog.Logger, previous string, parseErr error) (*deliverable.Deliverable, error) {
	for attempt := 1; attempt <= g.maxFormatRetries; attempt++ {
		log.Warn("generation output malformed, re-prompting",
			logging.Int("attempt", attempt),
			logging.Error(parseErr))
		content, finishReason, err := g.client.complete(ctx, systemPrompt, formatRetryPrompt(previous, parseErr), g.maxOutputTokens)
		if err != nil {
			return nil, faults.Wrap(faults.ErrExternalService, "generating", "reformat", "completion request failed", err)
		}
		if finishReason == finishLength {
			return nil, faults.Wrap(faults.ErrGenerationTruncated, "generating", "reformat", "output truncated during format retry", nil)
		}
		d, retryErr := deliverable.Parse(content)
		if retryErr == nil {
			return d, nil
		}
		previous, parseErr = content, retryErr
	}
	return nil, faults.Wrap(faults.ErrGenerationMalformed, "generating", "generate",
		"output never parsed within the format retry budget", parseErr)
}

// RegeneratePart replaces one part of an existing deliverable to resolve
// correctable validation failures. The deliverable is mutated in place on
// success.
func (g *Generator) RegeneratePart(ctx context.Context, bctx *brief.Context, d *deliverable.Deliverable, part string, problems []string) error {
	log := logging.WithContext(ctx, g.logger)
	prompt := partPrompt(bctx, d, part, problems)

	content, finishReason, err := g.client.complete(ctx, systemPrompt, prompt, g.maxOutputTokens)
	if err != nil {
		return faults.Wrap(faults.ErrExternalService, "generating", "regenerate_part", "completion request failed", err)
	}
	if finishReason == finishLength {
		return faults.Wrap(faults.ErrGenerationTruncated, "generating", "regenerate_part",
			"part regeneration truncated", nil)
	}
	if err := d.SetPart(part, content); err != nil {
		return faults.Wrap(faults.ErrGenerationMalformed, "generating", "regenerate_part",
			"part payload did not parse", err)
	}
	log.Info("deliverable part regenerated", logging.String("part", part))
	return nil
}
