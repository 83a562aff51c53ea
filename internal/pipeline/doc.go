// Package pipeline drives queue items through the optimization stages:
// gathering research, generating the deliverable, validating it, and staging
// a review draft. Items are processed sequentially and fail independently; a
// failed item records bounded error text and the run moves on. Every status
// transition is persisted before the next stage starts, so a crashed run
// resumes from the last persisted status.
package pipeline
