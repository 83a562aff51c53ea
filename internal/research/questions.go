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

const (
	serpTaskOK      = 20000
	maxOrganicURLs  = 10
	answerCharLimit = 300
)

// QuestionClient fetches People Also Ask questions and top organic URLs from
// a SERP data provider. Authentication is HTTP basic.
type QuestionClient struct {
	endpoint   string
	login      string
	password   string
	httpClient *http.Client
}

// NewQuestionClient returns a configured client, or nil when the endpoint or
// credentials are absent.
func NewQuestionClient(endpoint, login, password string, timeout time.Duration) *QuestionClient {
	if endpoint == "" || login == "" || password == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &QuestionClient{
		endpoint:   endpoint,
		login:      login,
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type serpResponse struct {
	Tasks []struct {
		StatusCode    int    `json:"status_code"`
		StatusMessage string `json:"status_message"`
		Result        []struct {
			Items []serpItem `json:"items"`
		} `json:"result"`
	} `json:"tasks"`
}

type serpItem struct {
	Type            string     `json:"type"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	URL             string     `json:"url"`
	Items           []serpItem `json:"items"`
	ExpandedElement []struct {
		FeaturedTitle string `json:"featured_title"`
		Description   string `json:"description"`
	} `json:"expanded_element"`
}

func (i serpItem) answer() string {
	if len(i.ExpandedElement) > 0 {
		if text := i.ExpandedElement[0].FeaturedTitle; text != "" {
			return strings.TrimSpace(text)
		}
		if text := i.ExpandedElement[0].Description; text != "" {
			return strings.TrimSpace(text)
		}
	}
	return strings.TrimSpace(i.Description)
}

// Fetch runs a live SERP task for the keyword and returns a formatted
// question block plus the top organic URLs for competitor analysis.
func (c *QuestionClient) Fetch(ctx context.Context, keyword string) (string, []string, error) {
	payload := []map[string]any{{
		"keyword":          keyword,
		"location_name":    "United Arab Emirates",
		"language_name":    "English",
		"se_results_count": 100,
	}}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("marshal task: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.login, c.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("serp request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", nil, fmt.Errorf("serp request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", nil, fmt.Errorf("decode serp response: %w", err)
	}
	if len(parsed.Tasks) == 0 {
		return "", nil, fmt.Errorf("serp response contained no tasks")
	}
	task := parsed.Tasks[0]
	if task.StatusCode != serpTaskOK {
		return "", nil, fmt.Errorf("serp task failed: %s", task.StatusMessage)
	}

	var items []serpItem
	if len(task.Result) > 0 {
		items = task.Result[0].Items
	}

	type qa struct{ question, answer string }
	var questions []qa
	var organic []string
	seen := make(map[string]bool)

	for _, item := range items {
		switch item.Type {
		case "people_also_ask":
			if item.Title != "" {
				questions = append(questions, qa{item.Title, item.answer()})
			}
			for _, sub := range item.Items {
				if sub.Title != "" {
					questions = append(questions, qa{sub.Title, sub.answer()})
				}
			}
		case "organic":
			url := strings.TrimSpace(item.URL)
			if url != "" && !seen[url] && len(organic) < maxOrganicURLs {
				organic = append(organic, url)
				seen[url] = true
			}
		}
	}

	if len(questions) == 0 {
		return "No People Also Ask data found for this keyword.", organic, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "People Also Ask - %q:", keyword)
	for _, q := range questions {
		fmt.Fprintf(&b, "\n  Q: %s", q.question)
		if q.answer != "" {
			answer := q.answer
			if runes := []rune(answer); len(runes) > answerCharLimit {
				answer = string(runes[:answerCharLimit])
			}
			fmt.Fprintf(&b, "\n     A: %s", answer)
		}
	}
	return b.String(), organic, nil
}
