// Package knowledge loads the editorial guideline documents that steer brief
// assembly and generation. Documents are markdown files in a configured
// directory, read once per run and passed through verbatim.
package knowledge
