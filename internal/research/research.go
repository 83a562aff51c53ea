package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"copydesk/internal/config"
	"copydesk/internal/faults"
	"copydesk/internal/logging"
	"copydesk/internal/queue"
)

// Bundle is the combined research output for one queue item.
type Bundle struct {
	Questions string
	Keywords  string
	Evidence  string
	Warnings  []string
}

// Degraded reports whether any provider fell back to a placeholder.
func (b *Bundle) Degraded() bool { return len(b.Warnings) > 0 }

// Aggregator runs every research provider for an item and assembles the
// bundle. A nil provider means it was not configured.
type Aggregator struct {
	questions *QuestionClient
	evidence  *EvidenceClient
	scout     *CompetitorScout
	logger    *slog.Logger
}

// NewAggregator wires providers from configuration. Unconfigured providers
// degrade to placeholders at gather time.
func NewAggregator(cfg *config.Config, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Aggregator{
		questions: NewQuestionClient(
			cfg.Research.QuestionEndpoint,
			cfg.Research.QuestionLogin,
			cfg.Research.QuestionPassword,
			time.Duration(cfg.Research.QuestionTimeoutSeconds)*time.Second,
		),
		evidence: NewEvidenceClient(
			cfg.Research.EvidenceEndpoint,
			cfg.Research.EvidenceAPIKey,
			cfg.Research.EvidenceModel,
			time.Duration(cfg.Research.EvidenceTimeoutSeconds)*time.Second,
		),
		scout:  NewCompetitorScout(cfg.Research.CompetitorPages, time.Duration(cfg.Research.CompetitorTimeoutSeconds)*time.Second),
		logger: logging.NewComponentLogger(logger, "research"),
	}
}

// Gather collects questions, keyword metrics, evidence, and competitor
// outlines for an item. Provider failures degrade to placeholders plus a
// warning; Gather itself only errors when the context is done.
func (a *Aggregator) Gather(ctx context.Context, item *queue.Item) (*Bundle, error) {
	keyword := strings.TrimSpace(item.TargetKeyword)
	if keyword == "" {
		keyword = item.Title
	}
	log := logging.WithContext(ctx, a.logger)
	bundle := &Bundle{}

	var organicURLs []string
	if a.questions == nil {
		bundle.warn(log, "questions", "question provider not configured")
		bundle.Questions = "People Also Ask data unavailable: provider not configured."
	} else {
		questions, urls, err := a.questions.Fetch(ctx, keyword)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			degraded := faults.Wrap(faults.ErrProviderDegraded, "gathering", "questions", "question fetch failed", err)
			bundle.warn(log, "questions", degraded.Error())
			bundle.Questions = fmt.Sprintf("People Also Ask data unavailable: %v", err)
		} else {
			bundle.Questions = questions
			organicURLs = urls
			log.Info("question data gathered",
				logging.String("keyword", keyword),
				logging.Int("organic_urls", len(urls)))
		}
	}

	// Keyword metrics are pre-populated on the row by an upstream step;
	// this stage only reads them.
	if keywords := strings.TrimSpace(item.KeywordData); keywords != "" {
		bundle.Keywords = keywords
	} else {
		bundle.warn(log, "keywords", "keyword metrics missing from queue row; run the keyword pre-step first")
		bundle.Keywords = "Keyword metrics not available for this post."
	}

	if a.evidence == nil {
		bundle.warn(log, "evidence", "evidence provider not configured")
		bundle.Evidence = "Evidence research unavailable: provider not configured."
	} else {
		evidence, err := a.evidence.Research(ctx, item.Title, keyword)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			degraded := faults.Wrap(faults.ErrProviderDegraded, "gathering", "evidence", "evidence research failed", err)
			bundle.warn(log, "evidence", degraded.Error())
			bundle.Evidence = fmt.Sprintf("Evidence research unavailable: %v", err)
		} else {
			bundle.Evidence = evidence
			log.Info("evidence gathered", logging.Int("chars", len(evidence)))
		}
	}

	if outline := a.scout.Outline(ctx, organicURLs); outline != "" {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		bundle.Evidence = bundle.Evidence + "\n\n" + outline
		log.Info("competitor outlines gathered", logging.Int("pages", min(len(organicURLs), a.scout.maxPages)))
	}

	return bundle, nil
}

func (b *Bundle) warn(log *slog.Logger, provider, message string) {
	b.Warnings = append(b.Warnings, provider+": "+message)
	log.Warn("research provider degraded",
		logging.String("provider", provider),
		logging.String("detail", message))
}
