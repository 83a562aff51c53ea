// Package rules holds the editorial constraint thresholds the validator
// enforces. A default rule set ships embedded in the binary; deployments can
// point paths.rules_path at a YAML file to override it without a rebuild.
package rules
