// Package generator wraps the chat-completion service that produces the
// eight-part deliverable. It owns the JSON parse boundary: raw model output
// is decoded into typed structures here, and failures are classified as
// truncated, malformed, or a service failure before anything reaches the
// pipeline. Re-prompts for malformed output and the single ceiling raise for
// truncated output are bounded and happen inside this package; transport
// retries for flaky HTTP live in the client.
package generator
