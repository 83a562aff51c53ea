// Package faults defines the error taxonomy the pipeline routes on. Sentinel
// markers classify a failure; Wrap attaches the marker together with the
// stage and operation where it happened. Callers branch on the marker with
// errors.Is and never parse error strings.
package faults
