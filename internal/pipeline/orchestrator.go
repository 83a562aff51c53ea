package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"copydesk/internal/brief"
	"copydesk/internal/deliverable"
	"copydesk/internal/faults"
	"copydesk/internal/knowledge"
	"copydesk/internal/logging"
	"copydesk/internal/notifications"
	"copydesk/internal/publish"
	"copydesk/internal/queue"
	"copydesk/internal/research"
	"copydesk/internal/validate"
)

// Researcher gathers the research bundle for an item.
type Researcher interface {
	Gather(ctx context.Context, item *queue.Item) (*research.Bundle, error)
}

// ContentGenerator produces and repairs deliverables.
type ContentGenerator interface {
	Generate(ctx context.Context, bctx *brief.Context) (*deliverable.Deliverable, error)
	RegeneratePart(ctx context.Context, bctx *brief.Context, d *deliverable.Deliverable, part string, problems []string) error
}

// Validator runs the constraint engine.
type Validator interface {
	Validate(item *queue.Item, d *deliverable.Deliverable) (*validate.Result, error)
}

// Publisher talks to the CMS for current content and review drafts.
type Publisher interface {
	FetchCurrent(ctx context.Context, remoteID string) (string, error)
	CreateDraft(ctx context.Context, title, html string) (publish.Draft, error)
}

// Deps wires an orchestrator.
type Deps struct {
	Store                *queue.Store
	Researcher           Researcher
	Generator            ContentGenerator
	Validator            Validator
	Publisher            Publisher
	Notifier             notifications.Service
	Knowledge            *knowledge.Library
	MaxValidationRetries int
	ErrorLogLimit        int
	Logger               *slog.Logger
}

// Orchestrator processes one item through the full stage sequence.
type Orchestrator struct {
	store                *queue.Store
	researcher           Researcher
	generator            ContentGenerator
	validator            Validator
	publisher            Publisher
	notifier             notifications.Service
	knowledge            *knowledge.Library
	maxValidationRetries int
	errorLogLimit        int
	logger               *slog.Logger
}

// Outcome summarizes what happened to one item.
type Outcome struct {
	ItemID    int64
	Title     string
	Status    queue.Status
	DraftLink string
	Err       error
	Warnings  []string
	Advisory  []string
}

// Failed reports whether the item ended in the error status.
func (o Outcome) Failed() bool { return o.Err != nil }

// NewOrchestrator builds an orchestrator from its dependencies.
func NewOrchestrator(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.Noop()
	}
	retries := deps.MaxValidationRetries
	if retries < 0 {
		retries = 0
	}
	return &Orchestrator{
		store:                deps.Store,
		researcher:           deps.Researcher,
		generator:            deps.Generator,
		validator:            deps.Validator,
		publisher:            deps.Publisher,
		notifier:             notifier,
		knowledge:            deps.Knowledge,
		maxValidationRetries: retries,
		errorLogLimit:        deps.ErrorLogLimit,
		logger:               logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Process runs one item from pending to awaiting review. Any failure pushes
// the item to the error status with bounded error text; Process itself only
// returns an outcome.
func (o *Orchestrator) Process(ctx context.Context, item *queue.Item) Outcome {
	ctx = logging.WithItemID(ctx, item.ID)
	outcome := Outcome{ItemID: item.ID, Title: item.Title}

	bundle, bctx, err := o.gather(ctx, item)
	if err != nil {
		return o.fail(ctx, item, outcome, err)
	}
	outcome.Warnings = bundle.Warnings

	d, result, err := o.generate(ctx, item, bctx)
	if err != nil {
		return o.fail(ctx, item, outcome, err)
	}
	for _, v := range result.Advisory() {
		outcome.Advisory = append(outcome.Advisory, fmt.Sprintf("%s: %s", v.Code, v.Detail))
	}

	if err := o.stage(ctx, item, d); err != nil {
		return o.fail(ctx, item, outcome, err)
	}

	outcome.Status = item.Status
	outcome.DraftLink = item.DraftLink
	return outcome
}

// gather runs the gathering stage: research bundle, research write-back, and
// the current-content fetch. It transitions the item into gathering first and
// into generating on the way out.
func (o *Orchestrator) gather(ctx context.Context, item *queue.Item) (*research.Bundle, *brief.Context, error) {
	ctx = logging.WithStage(ctx, string(queue.StatusGathering))
	log := logging.WithContext(ctx, o.logger)

	if err := o.store.Transition(ctx, item, queue.StatusGathering); err != nil {
		return nil, nil, faults.Wrap(faults.ErrExternalService, "gathering", "transition", "persist status", err)
	}
	log.Info("gathering research")

	bundle, err := o.researcher.Gather(ctx, item)
	if err != nil {
		return nil, nil, faults.Wrap(faults.ErrExternalService, "gathering", "research", "gather research bundle", err)
	}

	// Write-back keeps the research inspectable on the row.
	item.QuestionData = bundle.Questions
	item.EvidenceData = bundle.Evidence

	var currentContent string
	if item.RemoteID != "" {
		currentContent, err = o.publisher.FetchCurrent(ctx, item.RemoteID)
		if err != nil {
			log.Warn("current content unavailable", logging.Error(err))
			currentContent = ""
		}
	}

	if err := o.store.Transition(ctx, item, queue.StatusGenerating); err != nil {
		return nil, nil, faults.Wrap(faults.ErrExternalService, "gathering", "transition", "persist status", err)
	}

	bctx := brief.Assemble(item, bundle, o.knowledge, currentContent)
	return bundle, bctx, nil
}

// generate runs the generating stage: the full generation call plus the
// bounded validation-repair loop.
func (o *Orchestrator) generate(ctx context.Context, item *queue.Item, bctx *brief.Context) (*deliverable.Deliverable, *validate.Result, error) {
	ctx = logging.WithStage(ctx, string(queue.StatusGenerating))
	log := logging.WithContext(ctx, o.logger)
	log.Info("generating deliverable")

	d, err := o.generator.Generate(ctx, bctx)
	if err != nil {
		return nil, nil, err
	}

	result, err := o.validator.Validate(item, d)
	if err != nil {
		return nil, nil, faults.Wrap(faults.ErrExternalService, "generating", "validate", "constraint engine", err)
	}

	for attempt := 1; !result.OK() && attempt <= o.maxValidationRetries; attempt++ {
		if result.Structural() {
			break
		}
		grouped := result.CorrectableByPart()
		log.Warn("validation failed, regenerating parts",
			logging.Int("attempt", attempt),
			logging.Int("violations", len(result.Required())))
		for _, part := range validate.PartOrder() {
			violations, ok := grouped[part]
			if !ok {
				continue
			}
			problems := make([]string, len(violations))
			for i, v := range violations {
				problems[i] = fmt.Sprintf("%s: %s", v.Code, v.Detail)
			}
			if err := o.generator.RegeneratePart(ctx, bctx, d, part, problems); err != nil {
				return nil, nil, err
			}
		}
		result, err = o.validator.Validate(item, d)
		if err != nil {
			return nil, nil, faults.Wrap(faults.ErrExternalService, "generating", "validate", "constraint engine", err)
		}
	}

	if !result.OK() {
		detail := summarizeViolations(result.Required())
		if result.Structural() {
			return nil, nil, faults.Wrap(faults.ErrValidationStructural, "generating", "validate", detail, nil)
		}
		return nil, nil, faults.Wrap(faults.ErrValidationCorrectable, "generating", "validate",
			fmt.Sprintf("still failing after %d repair attempts: %s", o.maxValidationRetries, detail), nil)
	}
	return d, result, nil
}

// stage creates the review draft and moves the item into awaiting review.
func (o *Orchestrator) stage(ctx context.Context, item *queue.Item, d *deliverable.Deliverable) error {
	log := logging.WithContext(logging.WithStage(ctx, string(queue.StatusAwaitingReview)), o.logger)

	draft, err := o.publisher.CreateDraft(ctx, reviewTitle(item, d), renderReviewHTML(d))
	if err != nil {
		return faults.Wrap(faults.ErrExternalService, "generating", "stage_draft", "create review draft", err)
	}

	item.DraftRef = draft.Ref()
	item.DraftLink = draft.Link
	item.CompletedAt = time.Now().UTC().Format("2006-01-02")
	item.ErrorLog = ""
	if err := o.store.Transition(ctx, item, queue.StatusAwaitingReview); err != nil {
		return faults.Wrap(faults.ErrExternalService, "generating", "transition", "persist status", err)
	}

	log.Info("item awaiting review",
		logging.String("draft_ref", item.DraftRef),
		logging.String("draft_link", item.DraftLink))
	if err := o.notifier.NotifyAwaitingReview(ctx, item.Title, item.DraftLink); err != nil {
		log.Warn("review notification failed", logging.Error(err))
	}
	return nil
}

// fail records the error on the item and pushes it to the error status. The
// item is left untouched if it already sits in a terminal state.
func (o *Orchestrator) fail(ctx context.Context, item *queue.Item, outcome Outcome, cause error) Outcome {
	log := logging.WithContext(ctx, o.logger)
	outcome.Err = cause

	if queue.CanAdvance(item.Status, queue.StatusError) {
		item.SetError(faults.Truncate(cause.Error(), o.errorLogLimit))
		if err := o.store.Update(ctx, item); err != nil {
			log.Error("failed to persist error status", logging.Error(err))
		}
	}
	outcome.Status = item.Status

	log.Error("item failed",
		logging.String("class", faults.Class(cause)),
		logging.Error(cause))
	if err := o.notifier.NotifyItemFailed(ctx, item.Title, cause); err != nil {
		log.Warn("failure notification failed", logging.Error(err))
	}
	return outcome
}

func summarizeViolations(violations []validate.Violation) string {
	codes := make([]string, len(violations))
	for i, v := range violations {
		codes[i] = fmt.Sprintf("%s (%s)", v.Code, v.Detail)
	}
	return strings.Join(codes, "; ")
}

func reviewTitle(item *queue.Item, d *deliverable.Deliverable) string {
	if title := strings.TrimSpace(d.Meta.Title); title != "" {
		return title
	}
	return item.Title
}

// errStopped marks a run interrupted between items.
var errStopped = errors.New("run stopped")
