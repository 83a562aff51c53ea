// Package validate is the constraint engine: a pure, deterministic rule set
// applied to a deliverable in the context of its queue item. Every violation
// carries a stable machine-readable code, a severity (required rules gate the
// item, advisory rules only annotate the run summary), and a class
// (correctable violations may be fixed by regenerating one part, structural
// violations need human attention). Validating the same inputs twice yields
// identical results.
package validate
