// Package queue models the content-optimization work queue: items, the
// closed status state machine, and the SQLite-backed row store.
//
// The pipeline only ever advances an item pending → gathering → generating →
// awaiting_review, or to error from a programmatic stage. Review, approval,
// publishing, skipping, and the error → pending reset are human actions and
// are rejected by Transition.
package queue
