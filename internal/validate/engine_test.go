package validate

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"copydesk/internal/deliverable"
	"copydesk/internal/queue"
	"copydesk/internal/rules"
)

func mustRules(t *testing.T) *rules.Set {
	t.Helper()
	set, err := rules.Load("")
	if err != nil {
		t.Fatalf("rules.Load: %v", err)
	}
	return set
}

type bodyOptions struct {
	h1            string
	firstPara     string
	citeCount     int
	faqCount      int
	faqBulleted   bool
	includeCTA    bool
	ctaHeading    string
	includeCreds  bool
	includeAlert  bool
	seasonalBlock bool
	extra         string
}

func buildBody(set *rules.Set, opts bodyOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>%s</h1>\n<p>%s</p>\n", opts.h1, opts.firstPara)

	b.WriteString("<h2>Recovery Timeline</h2>\n<p>Most patients recover within two weeks")
	for i := 0; i < opts.citeCount; i++ {
		fmt.Fprintf(&b, ` <a class="cite" href="https://source-%d.example/">[%d]</a>`, i, i+1)
	}
	b.WriteString(".</p>\n")

	if opts.includeAlert {
		b.WriteString(`<div class="emergency-alert"><strong>When to seek emergency care:</strong> severe abdominal pain, fever, or jaundice.</div>` + "\n")
	}
	if opts.seasonalBlock {
		b.WriteString(`<section class="seasonal"><p>Ramadan dates depend on moon sighting; confirm fasting guidance with your surgeon.</p></section>` + "\n")
	}

	b.WriteString(`<section class="faq"><h2>Frequently Asked Questions</h2>` + "\n")
	for i := 0; i < opts.faqCount; i++ {
		fmt.Fprintf(&b, "<h3>Question %d about recovery?</h3>\n", i+1)
		if opts.faqBulleted {
			b.WriteString("<ul><li>Short direct answer.</li></ul>\n")
		} else {
			b.WriteString("<p>Short direct answer.</p>\n")
		}
	}
	b.WriteString("</section>\n")

	if opts.includeCTA {
		heading := opts.ctaHeading
		if heading == "" {
			heading = "Book Your Gallstone Consultation"
		}
		b.WriteString(strings.ReplaceAll(set.Templates.CTA, rules.HeadingSlot, heading))
		b.WriteString("\n")
	}
	if opts.includeCreds {
		b.WriteString(set.Templates.Credentials)
		b.WriteString("\n")
	}
	b.WriteString(opts.extra)
	return b.String()
}

func passingDeliverable(set *rules.Set, opts bodyOptions) *deliverable.Deliverable {
	d := &deliverable.Deliverable{
		Body:         buildBody(set, opts),
		SchemaMarkup: `{"@type":"MedicalWebPage"}`,
		Meta: deliverable.Meta{
			Title:       "Gallstone Surgery Recovery: Timeline and Advice",
			Description: "How long gallstone surgery recovery takes, what helps it go smoothly, and when to call your surgeon, explained by a specialist laparoscopic surgeon in Abu Dhabi.",
		},
		InternalLinks: []deliverable.Link{
			{Anchor: "a", TargetURL: "/a/"}, {Anchor: "b", TargetURL: "/b/"}, {Anchor: "c", TargetURL: "/c/"},
		},
		ImagePrompts: []deliverable.ImagePrompt{{Placement: "hero", Prompt: "p", AltText: "alt"}},
		Fanout: []deliverable.FanoutEntry{
			{Section: "Recovery Timeline", Queries: []string{"recovery time"}},
			{Section: "Frequently Asked Questions", Queries: []string{"faq"}},
		},
		ChangeSummary: "Rebuilt for answer-first structure.",
	}
	for i := 0; i < opts.citeCount; i++ {
		d.Citations = append(d.Citations, deliverable.Citation{
			URL:   fmt.Sprintf("https://source-%d.example/", i),
			Title: fmt.Sprintf("Source %d", i+1),
		})
	}
	return d
}

func balancedOptions() bodyOptions {
	return bodyOptions{
		h1:           "Gallstone Surgery Recovery",
		firstPara:    "Gallstone surgery recovery takes one to two weeks for most patients.",
		citeCount:    5,
		faqCount:     10,
		faqBulleted:  true,
		includeCTA:   true,
		includeCreds: true,
	}
}

func balancedItem() *queue.Item {
	return &queue.Item{
		ID:            1,
		Title:         "Gallstone Surgery Recovery",
		TargetKeyword: "gallstone surgery recovery",
		Tier:          1,
		Directive:     queue.DirectiveBalanced,
	}
}

func TestCleanDeliverablePasses(t *testing.T) {
	set := mustRules(t)
	d := passingDeliverable(set, balancedOptions())

	result, err := New(set).Validate(balancedItem(), d)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.OK() {
		t.Fatalf("expected pass, got %+v", result.Violations)
	}
	if len(result.Violations) != 0 {
		t.Fatalf("expected zero violations, got %+v", result.Violations)
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	set := mustRules(t)
	opts := balancedOptions()
	opts.citeCount = 2
	d := passingDeliverable(set, opts)
	engine := New(set)

	first, err := engine.Validate(balancedItem(), d)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	second, err := engine.Validate(balancedItem(), d)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("results differ:\n%+v\n%+v", first, second)
	}
}

func hasCode(result *Result, code string) bool {
	for _, v := range result.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

func violation(t *testing.T, result *Result, code string) Violation {
	t.Helper()
	for _, v := range result.Violations {
		if v.Code == code {
			return v
		}
	}
	t.Fatalf("violation %s not found in %+v", code, result.Violations)
	return Violation{}
}

func TestMetaLengthRules(t *testing.T) {
	set := mustRules(t)
	d := passingDeliverable(set, balancedOptions())
	d.Meta.Title = "Too short"
	d.Meta.Description = strings.Repeat("x", 200)

	result, err := New(set).Validate(balancedItem(), d)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v := violation(t, result, "TITLE_LENGTH"); v.Class != ClassCorrectable || v.Part != deliverable.PartMeta {
		t.Fatalf("TITLE_LENGTH = %+v", v)
	}
	violation(t, result, "DESC_LENGTH")
}

func TestCitationRules(t *testing.T) {
	set := mustRules(t)
	opts := balancedOptions()
	opts.citeCount = 4
	d := passingDeliverable(set, opts)
	// Citations part lists fewer sources than distinct inline targets.
	d.Citations = d.Citations[:2]

	item := balancedItem()
	item.Tier = 2 // requires 7 inline citations

	result, err := New(set).Validate(item, d)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v := violation(t, result, "CITATIONS_MIN"); v.Class != ClassCorrectable {
		t.Fatalf("CITATIONS_MIN = %+v", v)
	}
	if v := violation(t, result, "CITATION_SOURCES"); v.Class != ClassStructural {
		t.Fatalf("CITATION_SOURCES = %+v", v)
	}
	if result.OK() {
		t.Fatal("required violations must fail the result")
	}
	if !result.Structural() {
		t.Fatal("expected structural flag")
	}
}

func TestTierThreeRequiresAlert(t *testing.T) {
	set := mustRules(t)
	opts := balancedOptions()
	opts.citeCount = 10
	d := passingDeliverable(set, opts)
	item := balancedItem()
	item.Tier = 3

	result, err := New(set).Validate(item, d)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	violation(t, result, "ALERT_REQUIRED")

	opts.includeAlert = true
	d = passingDeliverable(set, opts)
	result, err = New(set).Validate(item, d)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if hasCode(result, "ALERT_REQUIRED") {
		t.Fatalf("alert present but still flagged: %+v", result.Violations)
	}
}

func TestSeasonalTriggerRequiresSection(t *testing.T) {
	set := mustRules(t)
	item := balancedItem()
	item.Notes = "apply Ramadan overlay"

	d := passingDeliverable(set, balancedOptions())
	result, err := New(set).Validate(item, d)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	violation(t, result, "SEASONAL_REQUIRED")

	opts := balancedOptions()
	opts.seasonalBlock = true
	d = passingDeliverable(set, opts)
	result, err = New(set).Validate(item, d)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if hasCode(result, "SEASONAL_REQUIRED") {
		t.Fatalf("seasonal block present but still flagged: %+v", result.Violations)
	}
}

func TestCTATemplateRules(t *testing.T) {
	set := mustRules(t)

	// Custom heading in the slot is allowed.
	opts := balancedOptions()
	opts.ctaHeading = "Ready to Discuss Your Surgery?"
	d := passingDeliverable(set, opts)
	result, err := New(set).Validate(balancedItem(), d)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if hasCode(result, "CTA_TEMPLATE") {
		t.Fatalf("slot-only customization flagged: %+v", result.Violations)
	}

	// Missing CTA is correctable.
	opts = balancedOptions()
	opts.includeCTA = false
	d = passingDeliverable(set, opts)
	result, _ = New(set).Validate(balancedItem(), d)
	if v := violation(t, result, "CTA_TEMPLATE"); v.Class != ClassCorrectable {
		t.Fatalf("missing CTA = %+v", v)
	}

	// Non-slot deviation is structural.
	opts = balancedOptions()
	d = passingDeliverable(set, opts)
	d.Body = strings.Replace(d.Body, "Same-week appointments available.", "Call us whenever.", 1)
	result, _ = New(set).Validate(balancedItem(), d)
	if v := violation(t, result, "CTA_TEMPLATE"); v.Class != ClassStructural {
		t.Fatalf("deviating CTA = %+v", v)
	}
}

func TestCredentialsTemplateIsStructural(t *testing.T) {
	set := mustRules(t)
	opts := balancedOptions()
	opts.includeCreds = false
	d := passingDeliverable(set, opts)

	result, err := New(set).Validate(balancedItem(), d)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v := violation(t, result, "CREDENTIALS_TEMPLATE"); v.Class != ClassStructural {
		t.Fatalf("CREDENTIALS_TEMPLATE = %+v", v)
	}
}

func TestBingDominantRules(t *testing.T) {
	set := mustRules(t)
	item := balancedItem()
	item.Directive = queue.DirectiveBingDominant

	// Keyword absent from H1 and first paragraph, FAQ below the 15 floor.
	opts := balancedOptions()
	opts.h1 = "Recovering From an Operation"
	opts.firstPara = "Most patients feel better quickly."
	opts.faqCount = 12
	d := passingDeliverable(set, opts)

	result, err := New(set).Validate(item, d)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	violation(t, result, "KEYWORD_H1")
	violation(t, result, "KEYWORD_FIRST_PARA")
	violation(t, result, "FAQ_MIN")

	opts = balancedOptions()
	opts.faqCount = 15
	d = passingDeliverable(set, opts)
	result, err = New(set).Validate(item, d)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.OK() {
		t.Fatalf("expected pass, got %+v", result.Violations)
	}
}

func TestGoogleDominantRules(t *testing.T) {
	set := mustRules(t)
	item := balancedItem()
	item.Directive = queue.DirectiveGoogleDominant

	opts := balancedOptions()
	opts.firstPara = strings.Repeat("A very long opening paragraph that keeps going. ", 10)
	opts.faqBulleted = false
	d := passingDeliverable(set, opts)

	result, err := New(set).Validate(item, d)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	violation(t, result, "ANSWER_FIRST")
	if v := violation(t, result, "FAQ_BULLETED"); v.Severity != SeverityAdvisory {
		t.Fatalf("FAQ_BULLETED = %+v", v)
	}
}

func TestAdvisoryRulesDoNotBlock(t *testing.T) {
	set := mustRules(t)
	d := passingDeliverable(set, balancedOptions())
	d.InternalLinks = d.InternalLinks[:1]
	d.ImagePrompts = nil
	d.Fanout = d.Fanout[:1] // drops FAQ section coverage

	result, err := New(set).Validate(balancedItem(), d)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.OK() {
		t.Fatalf("advisory-only result must be OK: %+v", result.Violations)
	}
	for _, code := range []string{"LINKS_SUGGESTED", "IMAGE_PROMPTS", "FANOUT_COVERAGE"} {
		if v := violation(t, result, code); v.Severity != SeverityAdvisory {
			t.Fatalf("%s severity = %s", code, v.Severity)
		}
	}
	if len(result.Advisory()) != 3 {
		t.Fatalf("advisory = %+v", result.Advisory())
	}
}

func TestMissingPartsAreReported(t *testing.T) {
	set := mustRules(t)
	d := passingDeliverable(set, balancedOptions())
	d.SchemaMarkup = ""
	d.ChangeSummary = "  "

	result, err := New(set).Validate(balancedItem(), d)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	violation(t, result, "PART_MISSING/"+deliverable.PartSchemaMarkup)
	violation(t, result, "PART_MISSING/"+deliverable.PartChangeSummary)
}

func TestCorrectableByPartGroupsForRetry(t *testing.T) {
	set := mustRules(t)
	opts := balancedOptions()
	opts.citeCount = 3 // below tier 1 floor of 5
	d := passingDeliverable(set, opts)
	d.Meta.Title = "Short"

	result, err := New(set).Validate(balancedItem(), d)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	grouped := result.CorrectableByPart()
	if len(grouped[deliverable.PartMeta]) != 1 {
		t.Fatalf("meta group = %+v", grouped)
	}
	if len(grouped[deliverable.PartBody]) == 0 {
		t.Fatalf("body group = %+v", grouped)
	}
}
