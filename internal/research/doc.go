// Package research gathers the external signals that feed brief assembly:
// People Also Ask questions from a SERP provider, pre-populated keyword
// metrics from the queue row, evidence research from a citation-backed chat
// provider, and heading outlines scraped from top-ranking competitor pages.
//
// Providers fail independently. A degraded provider contributes a placeholder
// plus a warning instead of failing the item; the run only errors when the
// caller decides the bundle is unusable.
package research
