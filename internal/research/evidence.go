package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const evidenceSystemRole = "You are a medical research assistant supporting a specialist surgeon in Abu Dhabi. " +
	"Your role is to research health topics thoroughly and provide structured, evidence-based findings " +
	"to help create accurate patient education content. Always respond in JSON format."

const evidencePromptTemplate = `{
  "research_topic": %q,
  "primary_keyword": %q,
  "research_questions": {
    "medical_overview": "Provide a comprehensive medical overview of this topic. What does current clinical evidence say? Include key statistics, timeframes, and patient outcomes from medical literature.",
    "patient_questions": "What are the most common questions and misconceptions patients have about this topic? What do patients frequently misunderstand that a specialist surgeon should clarify?",
    "clinical_evidence": "List the most authoritative medical sources (peer-reviewed journals, clinical guidelines, medical societies) covering this topic. Include URLs where available.",
    "uae_context": "What specific considerations apply to patients in the UAE and Abu Dhabi? Include relevant cultural, dietary, religious (Ramadan if applicable), and regional health factors.",
    "specialist_insights": "What specialist-level clinical details are typically missing from general patient education materials on this topic? What would a laparoscopic surgeon or gastroenterologist emphasise that general sources overlook?",
    "citable_facts": "List 5-8 specific, verifiable medical facts and statistics about this topic that are well-supported by clinical evidence. For each, note the type of source that supports it."
  }
}`

// EvidenceClient runs structured topic research against a citation-backed
// chat-completions provider.
type EvidenceClient struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewEvidenceClient returns a configured client, or nil when the endpoint or
// key is absent.
func NewEvidenceClient(endpoint, apiKey, model string, timeout time.Duration) *EvidenceClient {
	if endpoint == "" || apiKey == "" {
		return nil
	}
	if model == "" {
		model = "sonar-pro"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &EvidenceClient{
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type evidenceResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

// Research runs the structured research prompt for a post and returns the
// findings with a numbered citation block appended when the provider supplies
// one.
func (c *EvidenceClient) Research(ctx context.Context, postTitle, keyword string) (string, error) {
	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": evidenceSystemRole},
			{"role": "user", "content": fmt.Sprintf(evidencePromptTemplate, postTitle, keyword)},
		},
		"max_tokens":       4000,
		"temperature":      0.2,
		"return_citations": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("evidence request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("evidence request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed evidenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode evidence response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("evidence response contained no choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("evidence response content was empty")
	}
	if len(parsed.Citations) > 0 {
		var b strings.Builder
		b.WriteString(content)
		b.WriteString("\n\n### CITATIONS")
		for i, url := range parsed.Citations {
			fmt.Fprintf(&b, "\n[%d] %s", i+1, url)
		}
		content = b.String()
	}
	return content, nil
}
