package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"copydesk/internal/brief"
	"copydesk/internal/deliverable"
	"copydesk/internal/faults"
	"copydesk/internal/knowledge"
	"copydesk/internal/publish"
	"copydesk/internal/queue"
	"copydesk/internal/research"
	"copydesk/internal/testsupport"
	"copydesk/internal/validate"
)

type stubResearcher struct {
	bundle *research.Bundle
	err    error
}

func (s *stubResearcher) Gather(_ context.Context, _ *queue.Item) (*research.Bundle, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.bundle, nil
}

type regenCall struct {
	part     string
	problems []string
}

type stubGenerator struct {
	deliverable *deliverable.Deliverable
	err         error
	regenErr    error

	lastBrief  *brief.Context
	regenCalls []regenCall
}

func (s *stubGenerator) Generate(_ context.Context, bctx *brief.Context) (*deliverable.Deliverable, error) {
	s.lastBrief = bctx
	if s.err != nil {
		return nil, s.err
	}
	return s.deliverable, nil
}

func (s *stubGenerator) RegeneratePart(_ context.Context, _ *brief.Context, _ *deliverable.Deliverable, part string, problems []string) error {
	s.regenCalls = append(s.regenCalls, regenCall{part: part, problems: problems})
	return s.regenErr
}

// stubValidator returns queued results in order, repeating the final one.
type stubValidator struct {
	results []*validate.Result
	calls   int
}

func (s *stubValidator) Validate(_ *queue.Item, _ *deliverable.Deliverable) (*validate.Result, error) {
	s.calls++
	if len(s.results) == 0 {
		return &validate.Result{}, nil
	}
	idx := s.calls - 1
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	return s.results[idx], nil
}

type stubPublisher struct {
	current    string
	fetchErr   error
	draft      publish.Draft
	createErr  error
	fetchedIDs []string
	draftTitle string
	draftHTML  string
}

func (s *stubPublisher) FetchCurrent(_ context.Context, remoteID string) (string, error) {
	s.fetchedIDs = append(s.fetchedIDs, remoteID)
	if s.fetchErr != nil {
		return "", s.fetchErr
	}
	return s.current, nil
}

func (s *stubPublisher) CreateDraft(_ context.Context, title, html string) (publish.Draft, error) {
	s.draftTitle = title
	s.draftHTML = html
	if s.createErr != nil {
		return publish.Draft{}, s.createErr
	}
	return s.draft, nil
}

type recordingNotifier struct {
	mu           sync.Mutex
	runStarted   []int
	runCompleted []string
	reviews      []string
	failures     []string
	tests        int
}

func (r *recordingNotifier) NotifyRunStarted(_ context.Context, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runStarted = append(r.runStarted, count)
	return nil
}

func (r *recordingNotifier) NotifyRunCompleted(_ context.Context, processed, failed int, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runCompleted = append(r.runCompleted, fmt.Sprintf("%d/%d", processed, failed))
	return nil
}

func (r *recordingNotifier) NotifyAwaitingReview(_ context.Context, title, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reviews = append(r.reviews, title)
	return nil
}

func (r *recordingNotifier) NotifyItemFailed(_ context.Context, title string, _ error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, title)
	return nil
}

func (r *recordingNotifier) TestNotification(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tests++
	return nil
}

func newPipelineStore(t *testing.T) *queue.Store {
	t.Helper()
	return testsupport.MustOpenStore(t, testsupport.NewConfig(t))
}

func seedItem(t *testing.T, store *queue.Store, mutate func(*queue.Item)) *queue.Item {
	t.Helper()
	item := &queue.Item{
		Title:         "Gallbladder Surgery Recovery Timeline",
		TargetKeyword: "gallbladder surgery recovery",
		Tier:          2,
		Directive:     queue.DirectiveBalanced,
	}
	if mutate != nil {
		mutate(item)
	}
	item, err := store.NewItem(context.Background(), item)
	if err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item
}

func sampleDeliverable() *deliverable.Deliverable {
	return &deliverable.Deliverable{
		Body:         `<h1>Recovery</h1><p>Most patients recover within two weeks.</p>`,
		SchemaMarkup: `{"@type":"MedicalWebPage"}`,
		Meta: deliverable.Meta{
			Title:       "Gallbladder Surgery Recovery: Week-by-Week Guide",
			Description: "What to expect after laparoscopic gallbladder removal.",
		},
		Citations:     []deliverable.Citation{{URL: "https://www.nhs.uk/gallbladder", Title: "NHS"}},
		ChangeSummary: "Rewrote the timeline section and tightened the intro.",
	}
}

func sampleBundle() *research.Bundle {
	return &research.Bundle{
		Questions: "People Also Ask: how long does recovery take?",
		Keywords:  "gallbladder surgery recovery, 1200 impressions",
		Evidence:  "Recovery typically spans one to two weeks. [1]",
	}
}

type pipelineFixture struct {
	store      *queue.Store
	researcher *stubResearcher
	generator  *stubGenerator
	validator  *stubValidator
	publisher  *stubPublisher
	notifier   *recordingNotifier
}

func newFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	return &pipelineFixture{
		store:      newPipelineStore(t),
		researcher: &stubResearcher{bundle: sampleBundle()},
		generator:  &stubGenerator{deliverable: sampleDeliverable()},
		validator:  &stubValidator{},
		publisher:  &stubPublisher{draft: publish.Draft{ID: 321, Link: "https://example.com/?p=321"}},
		notifier:   &recordingNotifier{},
	}
}

func (f *pipelineFixture) orchestrator() *Orchestrator {
	return NewOrchestrator(Deps{
		Store:                f.store,
		Researcher:           f.researcher,
		Generator:            f.generator,
		Validator:            f.validator,
		Publisher:            f.publisher,
		Notifier:             f.notifier,
		Knowledge:            &knowledge.Library{},
		MaxValidationRetries: 2,
		ErrorLogLimit:        4000,
	})
}

func (f *pipelineFixture) reload(t *testing.T, id int64) *queue.Item {
	t.Helper()
	item, err := f.store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload item: %v", err)
	}
	if item == nil {
		t.Fatalf("item %d disappeared", id)
	}
	return item
}

func TestProcessHappyPath(t *testing.T) {
	f := newFixture(t)
	f.researcher.bundle.Warnings = []string{"keyword data missing, brief proceeds without it"}
	f.publisher.current = "<p>The old post body.</p>"
	item := seedItem(t, f.store, func(i *queue.Item) { i.RemoteID = "88" })

	outcome := f.orchestrator().Process(context.Background(), item)

	if outcome.Failed() {
		t.Fatalf("unexpected failure: %v", outcome.Err)
	}
	if outcome.Status != queue.StatusAwaitingReview {
		t.Fatalf("status = %s, want %s", outcome.Status, queue.StatusAwaitingReview)
	}
	if outcome.DraftLink != "https://example.com/?p=321" {
		t.Fatalf("draft link = %q", outcome.DraftLink)
	}
	if len(outcome.Warnings) != 1 {
		t.Fatalf("warnings = %v", outcome.Warnings)
	}

	stored := f.reload(t, item.ID)
	if stored.Status != queue.StatusAwaitingReview {
		t.Fatalf("stored status = %s", stored.Status)
	}
	if stored.DraftRef != "321" {
		t.Fatalf("draft ref = %q", stored.DraftRef)
	}
	if stored.QuestionData == "" || stored.EvidenceData == "" {
		t.Fatal("research blobs not written back")
	}
	if stored.CompletedAt == "" {
		t.Fatal("completed date not set")
	}
	if stored.ErrorLog != "" {
		t.Fatalf("error log = %q", stored.ErrorLog)
	}

	if len(f.publisher.fetchedIDs) != 1 || f.publisher.fetchedIDs[0] != "88" {
		t.Fatalf("fetched ids = %v", f.publisher.fetchedIDs)
	}
	if f.generator.lastBrief.CurrentContent != "<p>The old post body.</p>" {
		t.Fatalf("brief current content = %q", f.generator.lastBrief.CurrentContent)
	}
	if f.publisher.draftTitle != "Gallbladder Surgery Recovery: Week-by-Week Guide" {
		t.Fatalf("draft title = %q", f.publisher.draftTitle)
	}
	if !strings.Contains(f.publisher.draftHTML, "review appendix") {
		t.Fatal("review appendix missing from draft")
	}
	if !strings.Contains(f.publisher.draftHTML, "Rewrote the timeline section") {
		t.Fatal("change summary missing from draft")
	}

	if len(f.notifier.reviews) != 1 {
		t.Fatalf("review notifications = %v", f.notifier.reviews)
	}
	if len(f.notifier.failures) != 0 {
		t.Fatalf("unexpected failure notifications: %v", f.notifier.failures)
	}
}

func TestProcessResearchErrorFailsItem(t *testing.T) {
	f := newFixture(t)
	f.researcher.err = errors.New("serp api unreachable")
	item := seedItem(t, f.store, nil)

	outcome := f.orchestrator().Process(context.Background(), item)

	if !outcome.Failed() {
		t.Fatal("expected failure")
	}
	if !errors.Is(outcome.Err, faults.ErrExternalService) {
		t.Fatalf("err = %v, want external service", outcome.Err)
	}
	stored := f.reload(t, item.ID)
	if stored.Status != queue.StatusError {
		t.Fatalf("stored status = %s", stored.Status)
	}
	if !strings.Contains(stored.ErrorLog, "serp api unreachable") {
		t.Fatalf("error log = %q", stored.ErrorLog)
	}
	if len(f.notifier.failures) != 1 {
		t.Fatalf("failure notifications = %v", f.notifier.failures)
	}
}

func TestProcessCurrentContentFetchDegrades(t *testing.T) {
	f := newFixture(t)
	f.publisher.fetchErr = errors.New("403 from cms")
	item := seedItem(t, f.store, func(i *queue.Item) { i.RemoteID = "12" })

	outcome := f.orchestrator().Process(context.Background(), item)

	if outcome.Failed() {
		t.Fatalf("fetch failure must not fail the item: %v", outcome.Err)
	}
	if f.generator.lastBrief.CurrentContent != "" {
		t.Fatalf("current content = %q, want empty", f.generator.lastBrief.CurrentContent)
	}
}

func TestProcessGenerationFailure(t *testing.T) {
	f := newFixture(t)
	f.generator.err = faults.Wrap(faults.ErrGenerationMalformed, "generating", "parse", "response was not valid json", nil)
	item := seedItem(t, f.store, nil)

	outcome := f.orchestrator().Process(context.Background(), item)

	if !errors.Is(outcome.Err, faults.ErrGenerationMalformed) {
		t.Fatalf("err = %v", outcome.Err)
	}
	stored := f.reload(t, item.ID)
	if stored.Status != queue.StatusError {
		t.Fatalf("stored status = %s", stored.Status)
	}
	if !strings.Contains(stored.ErrorLog, "not valid json") {
		t.Fatalf("error log = %q", stored.ErrorLog)
	}
}

func TestProcessErrorLogBounded(t *testing.T) {
	f := newFixture(t)
	f.researcher.err = errors.New(strings.Repeat("x", 200))
	item := seedItem(t, f.store, nil)

	deps := Deps{
		Store:         f.store,
		Researcher:    f.researcher,
		Generator:     f.generator,
		Validator:     f.validator,
		Publisher:     f.publisher,
		Notifier:      f.notifier,
		ErrorLogLimit: 50,
	}
	NewOrchestrator(deps).Process(context.Background(), item)

	stored := f.reload(t, item.ID)
	if got := len([]rune(stored.ErrorLog)); got > 53 {
		t.Fatalf("error log length = %d, want at most 53", got)
	}
	if !strings.HasSuffix(stored.ErrorLog, "...") {
		t.Fatalf("error log not marked truncated: %q", stored.ErrorLog)
	}
}

func TestProcessStructuralFailureSkipsRepair(t *testing.T) {
	f := newFixture(t)
	f.validator.results = []*validate.Result{{
		Violations: []validate.Violation{{
			Code:     "CREDENTIALS_TEMPLATE",
			Part:     deliverable.PartBody,
			Severity: validate.SeverityRequired,
			Class:    validate.ClassStructural,
			Detail:   "credentials block missing",
		}},
	}}
	item := seedItem(t, f.store, nil)

	outcome := f.orchestrator().Process(context.Background(), item)

	if !errors.Is(outcome.Err, faults.ErrValidationStructural) {
		t.Fatalf("err = %v", outcome.Err)
	}
	if len(f.generator.regenCalls) != 0 {
		t.Fatalf("regeneration attempted on structural failure: %v", f.generator.regenCalls)
	}
	if f.reload(t, item.ID).Status != queue.StatusError {
		t.Fatal("item not in error status")
	}
}

func TestProcessCorrectableFailureRepaired(t *testing.T) {
	f := newFixture(t)
	f.validator.results = []*validate.Result{
		{Violations: []validate.Violation{{
			Code:     "TITLE_LENGTH",
			Part:     deliverable.PartMeta,
			Severity: validate.SeverityRequired,
			Class:    validate.ClassCorrectable,
			Detail:   "title is 12 characters, want 30 to 65",
		}}},
		{},
	}
	item := seedItem(t, f.store, nil)

	outcome := f.orchestrator().Process(context.Background(), item)

	if outcome.Failed() {
		t.Fatalf("unexpected failure: %v", outcome.Err)
	}
	if len(f.generator.regenCalls) != 1 {
		t.Fatalf("regen calls = %v", f.generator.regenCalls)
	}
	call := f.generator.regenCalls[0]
	if call.part != deliverable.PartMeta {
		t.Fatalf("regenerated part = %q", call.part)
	}
	if len(call.problems) != 1 || !strings.Contains(call.problems[0], "TITLE_LENGTH") {
		t.Fatalf("problems = %v", call.problems)
	}
	if f.reload(t, item.ID).Status != queue.StatusAwaitingReview {
		t.Fatal("item not awaiting review after repair")
	}
}

func TestProcessRepairBudgetExhausted(t *testing.T) {
	f := newFixture(t)
	f.validator.results = []*validate.Result{{
		Violations: []validate.Violation{{
			Code:     "DESC_LENGTH",
			Part:     deliverable.PartMeta,
			Severity: validate.SeverityRequired,
			Class:    validate.ClassCorrectable,
			Detail:   "description too short",
		}},
	}}
	item := seedItem(t, f.store, nil)

	outcome := f.orchestrator().Process(context.Background(), item)

	if !errors.Is(outcome.Err, faults.ErrValidationCorrectable) {
		t.Fatalf("err = %v", outcome.Err)
	}
	if !faults.Retryable(outcome.Err) {
		t.Fatal("exhausted repair budget should stay retryable")
	}
	if len(f.generator.regenCalls) != 2 {
		t.Fatalf("regen calls = %d, want 2", len(f.generator.regenCalls))
	}
	if f.reload(t, item.ID).Status != queue.StatusError {
		t.Fatal("item not in error status")
	}
}

func TestProcessAdvisoriesDoNotBlock(t *testing.T) {
	f := newFixture(t)
	f.validator.results = []*validate.Result{{
		Violations: []validate.Violation{{
			Code:     "LINKS_SUGGESTED",
			Part:     deliverable.PartInternalLinks,
			Severity: validate.SeverityAdvisory,
			Class:    validate.ClassNone,
			Detail:   "1 internal link suggested, 3 recommended",
		}},
	}}
	item := seedItem(t, f.store, nil)

	outcome := f.orchestrator().Process(context.Background(), item)

	if outcome.Failed() {
		t.Fatalf("advisory violation failed the item: %v", outcome.Err)
	}
	if len(f.generator.regenCalls) != 0 {
		t.Fatal("advisory violation triggered regeneration")
	}
	if len(outcome.Advisory) != 1 || !strings.Contains(outcome.Advisory[0], "LINKS_SUGGESTED") {
		t.Fatalf("advisory = %v", outcome.Advisory)
	}
}

func TestProcessDraftCreationFailure(t *testing.T) {
	f := newFixture(t)
	f.publisher.createErr = errors.New("cms returned 500")
	item := seedItem(t, f.store, nil)

	outcome := f.orchestrator().Process(context.Background(), item)

	if !errors.Is(outcome.Err, faults.ErrExternalService) {
		t.Fatalf("err = %v", outcome.Err)
	}
	stored := f.reload(t, item.ID)
	if stored.Status != queue.StatusError {
		t.Fatalf("stored status = %s", stored.Status)
	}
	if stored.DraftRef != "" {
		t.Fatalf("draft ref persisted despite failure: %q", stored.DraftRef)
	}
}

func TestReviewTitleFallsBackToItemTitle(t *testing.T) {
	item := &queue.Item{Title: "Hernia Repair Options"}
	d := sampleDeliverable()
	d.Meta.Title = "   "
	if got := reviewTitle(item, d); got != "Hernia Repair Options" {
		t.Fatalf("title = %q", got)
	}
}

func TestRenderReviewHTMLIncludesAppendix(t *testing.T) {
	d := sampleDeliverable()
	d.InternalLinks = []deliverable.Link{{Anchor: "hernia repair", TargetURL: "https://example.com/hernia", Rationale: "related procedure"}}
	d.ImagePrompts = []deliverable.ImagePrompt{{Placement: "after intro", Prompt: "surgeon at console", AltText: "surgeon"}}
	d.Fanout = []deliverable.FanoutEntry{{Section: "Recovery", Queries: []string{"recovery time", "diet after surgery"}}}

	html := renderReviewHTML(d)

	if !strings.HasPrefix(html, d.Body) {
		t.Fatal("body must lead the draft")
	}
	for _, want := range []string{
		"<hr />",
		"Week-by-Week Guide",
		"MedicalWebPage",
		"hernia repair",
		"surgeon at console",
		"recovery time, diet after surgery",
		"https://www.nhs.uk/gallbladder",
		"Rewrote the timeline section",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("draft missing %q", want)
		}
	}
}
