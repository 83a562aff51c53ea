package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending        Status = "pending"
	StatusGathering      Status = "gathering"
	StatusGenerating     Status = "generating"
	StatusAwaitingReview Status = "awaiting_review"
	StatusApproved       Status = "approved"
	StatusPublished      Status = "published"
	StatusError          Status = "error"
	StatusSkip           Status = "skip"
)

var allStatuses = []Status{
	StatusPending,
	StatusGathering,
	StatusGenerating,
	StatusAwaitingReview,
	StatusApproved,
	StatusPublished,
	StatusError,
	StatusSkip,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// pipelineTransitions is the closed set of status moves the pipeline itself
// may perform. Everything else belongs to humans.
var pipelineTransitions = map[Status][]Status{
	StatusPending:    {StatusGathering, StatusError},
	StatusGathering:  {StatusGenerating, StatusError},
	StatusGenerating: {StatusAwaitingReview, StatusError},
}

// humanTransitions documents the moves reserved for human operators. The
// pipeline never performs these; the CLI retry command is the only in-repo
// surface that uses one (error → pending).
var humanTransitions = map[Status][]Status{
	StatusError:          {StatusPending},
	StatusAwaitingReview: {StatusApproved},
	StatusApproved:       {StatusPublished},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a raw string into a known Status. Matching is a strict
// allow-list: trim, lowercase, then exact comparison. Unknown values report
// ok=false and are never processed.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// CanAdvance reports whether the pipeline may move an item from one status to
// another.
func CanAdvance(from, to Status) bool {
	for _, next := range pipelineTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsHumanTransition reports whether a status move is reserved for operators.
func IsHumanTransition(from, to Status) bool {
	for _, next := range humanTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsProcessing reports whether a status reflects an in-flight pipeline stage.
func IsProcessing(status Status) bool {
	return status == StatusGathering || status == StatusGenerating
}

// Directive is the human-set platform strategy instruction for an item. It is
// never inferred from metrics.
type Directive string

const (
	DirectiveBingDominant   Directive = "BING_DOMINANT"
	DirectiveGoogleDominant Directive = "GOOGLE_DOMINANT"
	DirectiveBalanced       Directive = "BALANCED"
)

// ParseDirective normalizes a raw directive string. Unknown or empty values
// fall back to BALANCED with ok=false so callers can warn.
func ParseDirective(value string) (Directive, bool) {
	normalized := Directive(strings.ToUpper(strings.TrimSpace(value)))
	switch normalized {
	case DirectiveBingDominant, DirectiveGoogleDominant, DirectiveBalanced:
		return normalized, true
	default:
		return DirectiveBalanced, false
	}
}

// EngineMetrics holds the optional search-performance numbers for one engine.
// All fields are free-form strings copied from the queue; empty means absent,
// and absence is normal input, never an error.
type EngineMetrics struct {
	Impressions string
	Clicks      string
	CTR         string
	Position    string
}

// Empty reports whether no metric value is present.
func (m EngineMetrics) Empty() bool {
	return m.Impressions == "" && m.Clicks == "" && m.CTR == "" && m.Position == ""
}

// Metrics groups per-engine performance data.
type Metrics struct {
	Google EngineMetrics
	Bing   EngineMetrics
}

// Empty reports whether no metric at all is present.
func (m Metrics) Empty() bool {
	return m.Google.Empty() && m.Bing.Empty()
}

// Item represents one queue row: a single content piece to optimize.
type Item struct {
	ID                int64
	Title             string
	PostURL           string
	RemoteID          string
	TargetKeyword     string
	SecondaryKeywords string
	Tier              int
	Directive         Directive
	Notes             string
	Section           string
	PostType          string
	Description       string
	Metrics           Metrics
	Status            Status

	// Research blobs written back by the pipeline (keyword data arrives
	// out-of-band and is only read).
	QuestionData string
	KeywordData  string
	EvidenceData string

	// Artifacts and outcome.
	DraftRef    string
	DraftLink   string
	CompletedAt string
	ErrorLog    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SetError marks the item failed with bounded error text.
func (i *Item) SetError(message string) {
	i.Status = StatusError
	i.ErrorLog = message
}

// ClampTier normalizes a tier value into the supported 0–3 range.
func ClampTier(tier int) int {
	if tier < 0 {
		return 0
	}
	if tier > 3 {
		return 3
	}
	return tier
}
