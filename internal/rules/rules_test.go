package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	set, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []int{3, 5, 7, 10}
	for tier, expected := range want {
		if got := set.CitationMinimum(tier); got != expected {
			t.Fatalf("CitationMinimum(%d) = %d, want %d", tier, got, expected)
		}
	}
	if set.Meta.TitleMin != 30 || set.Meta.TitleMax != 65 {
		t.Fatalf("title bounds = %d-%d", set.Meta.TitleMin, set.Meta.TitleMax)
	}
	if got := set.FAQMinimum(true); got != 15 {
		t.Fatalf("FAQMinimum(bing) = %d, want 15", got)
	}
	if got := set.FAQMinimum(false); got != 10 {
		t.Fatalf("FAQMinimum(default) = %d, want 10", got)
	}
	if !strings.Contains(set.Templates.CTA, HeadingSlot) {
		t.Fatal("CTA template missing heading slot")
	}
}

func TestCitationMinimumClampsTier(t *testing.T) {
	set, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := set.CitationMinimum(-1); got != set.CitationMinimum(0) {
		t.Fatalf("negative tier = %d", got)
	}
	if got := set.CitationMinimum(9); got != set.CitationMinimum(3) {
		t.Fatalf("oversized tier = %d", got)
	}
}

func TestSeasonalTriggered(t *testing.T) {
	set, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !set.SeasonalTriggered("Fasting During Ramadan After Surgery") {
		t.Fatal("expected title trigger to match")
	}
	if !set.SeasonalTriggered("", "editor notes: add RAMADAN overlay") {
		t.Fatal("expected notes trigger to match case-insensitively")
	}
	if set.SeasonalTriggered("Gallstone Surgery Recovery Timeline") {
		t.Fatal("unexpected trigger match")
	}
}

func TestLoadOverrideFile(t *testing.T) {
	override := `
tiers:
  citation_minimums: [1, 2, 3, 4]
meta:
  title_min: 10
  title_max: 80
  description_min: 50
  description_max: 200
faq:
  bing_dominant_min: 5
  default_min: 2
answer_first:
  max_chars: 100
seasonal:
  triggers: ["eid"]
  selector: "section.seasonal"
  required_phrase: "moon sighting"
alert:
  selector: "div.emergency-alert"
  required_phrase: "seek emergency care"
advisory:
  internal_links_min: 1
  image_prompts_min: 1
templates:
  cta: "<div>{{heading}}</div>"
  credentials: "<div>clinic</div>"
`
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	set, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := set.CitationMinimum(3); got != 4 {
		t.Fatalf("CitationMinimum(3) = %d, want 4", got)
	}
	if set.SeasonalTriggered("ramadan post") {
		t.Fatal("default trigger should be replaced by override")
	}
	if !set.SeasonalTriggered("Eid travel tips") {
		t.Fatal("override trigger should match")
	}
}

func TestLoadRejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		"wrong tier count": "tiers:\n  citation_minimums: [1, 2]",
		"missing cta slot": `
tiers:
  citation_minimums: [1, 2, 3, 4]
meta: {title_min: 10, title_max: 80, description_min: 50, description_max: 200}
faq: {bing_dominant_min: 5, default_min: 2}
answer_first: {max_chars: 100}
templates: {cta: "<div>static</div>", credentials: "<div>clinic</div>"}
`,
	}
	for name, doc := range cases {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected load error", name)
		}
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing rules file")
	}
}
