package validate

import "copydesk/internal/deliverable"

// Severity gates whether a violation blocks the item.
type Severity string

const (
	SeverityRequired Severity = "required"
	SeverityAdvisory Severity = "advisory"
)

// Class tells the pipeline whether regeneration can fix a violation.
type Class string

const (
	ClassCorrectable Class = "correctable"
	ClassStructural  Class = "structural"
	// ClassNone applies to advisory violations, which are never retried.
	ClassNone Class = "none"
)

// Violation is one failed rule.
type Violation struct {
	Code     string
	Part     string
	Severity Severity
	Class    Class
	Detail   string
}

// Result is the full outcome of one validation pass.
type Result struct {
	Violations []Violation
}

// OK reports whether every required rule passed. Advisory failures do not
// block the item.
func (r *Result) OK() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityRequired {
			return false
		}
	}
	return true
}

// Required returns the blocking violations.
func (r *Result) Required() []Violation {
	return r.filter(func(v Violation) bool { return v.Severity == SeverityRequired })
}

// Advisory returns the non-blocking violations.
func (r *Result) Advisory() []Violation {
	return r.filter(func(v Violation) bool { return v.Severity == SeverityAdvisory })
}

// Structural reports whether any required violation is beyond regeneration.
func (r *Result) Structural() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityRequired && v.Class == ClassStructural {
			return true
		}
	}
	return false
}

// CorrectableByPart groups required correctable violations by the deliverable
// part to regenerate, in canonical part order.
func (r *Result) CorrectableByPart() map[string][]Violation {
	grouped := make(map[string][]Violation)
	for _, v := range r.Violations {
		if v.Severity == SeverityRequired && v.Class == ClassCorrectable {
			grouped[v.Part] = append(grouped[v.Part], v)
		}
	}
	return grouped
}

// PartFailed reports whether a specific part has any required violation.
func (r *Result) PartFailed(part string) bool {
	for _, v := range r.Violations {
		if v.Part == part && v.Severity == SeverityRequired {
			return true
		}
	}
	return false
}

// PartOrder returns deliverable parts in canonical order, for deterministic
// iteration over CorrectableByPart.
func PartOrder() []string { return deliverable.PartNames() }

func (r *Result) filter(keep func(Violation) bool) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func (r *Result) add(v Violation) {
	r.Violations = append(r.Violations, v)
}
