package deliverable

import (
	"strings"
	"testing"
)

const samplePayload = `{
  "body": "<h1>Gallstone Surgery</h1><p>Answer first.</p>",
  "schema_markup": "{\"@type\":\"MedicalWebPage\"}",
  "meta": {"title": "Gallstone Surgery in Abu Dhabi: Costs and Recovery", "description": "What gallstone surgery involves, how long recovery takes, and what it costs in Abu Dhabi, explained by a specialist laparoscopic surgeon with over 20 years of experience."},
  "internal_links": [{"anchor": "laparoscopic cholecystectomy", "target_url": "/laparoscopic-cholecystectomy/"}],
  "image_prompts": [{"placement": "hero", "prompt": "surgeon reviewing scan", "alt_text": "Surgeon reviewing an ultrasound scan"}],
  "fanout": [{"section": "Recovery Timeline", "queries": ["how long off work after gallbladder surgery"]}],
  "citations": [{"url": "https://www.nice.org.uk/guidance/cg188", "title": "NICE CG188"}],
  "change_summary": "Rewrote intro to answer-first, added FAQ."
}`

func TestParseDirectJSON(t *testing.T) {
	d, err := Parse(samplePayload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Meta.Title != "Gallstone Surgery in Abu Dhabi: Costs and Recovery" {
		t.Fatalf("title = %q", d.Meta.Title)
	}
	if len(d.Citations) != 1 || d.Citations[0].URL != "https://www.nice.org.uk/guidance/cg188" {
		t.Fatalf("citations = %+v", d.Citations)
	}
	if missing := d.MissingParts(); len(missing) != 0 {
		t.Fatalf("missing parts = %v", missing)
	}
}

func TestParseFencedJSONWithProse(t *testing.T) {
	wrapped := "Here is the optimization package:\n\n```json\n" + samplePayload + "\n```\nLet me know if you need changes."
	d, err := Parse(wrapped)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.ChangeSummary == "" {
		t.Fatal("expected change summary to survive sanitizing")
	}
}

func TestParseRejectsNonJSON(t *testing.T) {
	_, err := Parse("I could not produce the requested output.")
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "payload snippet") {
		t.Fatalf("error missing snippet context: %v", err)
	}
}

func TestMissingPartsReportsEmptyRequiredParts(t *testing.T) {
	d := &Deliverable{
		Body: "<p>body</p>",
		Meta: Meta{Title: "t"},
	}
	missing := d.MissingParts()
	joined := strings.Join(missing, ",")
	for _, want := range []string{PartSchemaMarkup, PartMeta, PartCitations, PartChangeSummary} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing should include %s, got %v", want, missing)
		}
	}
	if strings.Contains(joined, PartBody) {
		t.Fatalf("body should not be missing: %v", missing)
	}
}

func TestSetPartReplacesSingleParts(t *testing.T) {
	d, err := Parse(samplePayload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if err := d.SetPart(PartMeta, `{"title": "Shorter Title About Gallstone Surgery", "description": "A fresh description that satisfies the length requirements for search snippets while staying specific about gallstone surgery recovery and costs."}`); err != nil {
		t.Fatalf("SetPart meta: %v", err)
	}
	if d.Meta.Title != "Shorter Title About Gallstone Surgery" {
		t.Fatalf("title = %q", d.Meta.Title)
	}

	if err := d.SetPart(PartBody, "```html\n<h1>New Body</h1>\n```"); err != nil {
		t.Fatalf("SetPart body: %v", err)
	}
	if d.Body != "<h1>New Body</h1>" {
		t.Fatalf("body = %q", d.Body)
	}

	if err := d.SetPart(PartCitations, `[{"url":"https://example.org","title":"Example"}]`); err != nil {
		t.Fatalf("SetPart citations: %v", err)
	}
	if len(d.Citations) != 1 || d.Citations[0].Title != "Example" {
		t.Fatalf("citations = %+v", d.Citations)
	}

	if err := d.SetPart("nonsense", "{}"); err == nil {
		t.Fatal("expected unknown part error")
	}
}

func TestDecodeJSONExtractsEmbeddedObject(t *testing.T) {
	var meta Meta
	err := DecodeJSON(`The corrected meta block: {"title":"abc","description":"def"} hope that helps`, &meta)
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if meta.Title != "abc" || meta.Description != "def" {
		t.Fatalf("meta = %+v", meta)
	}
}
