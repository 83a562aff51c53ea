// Package notifications sends best-effort push notifications for run and
// review events over ntfy. Without a configured topic everything degrades to
// a noop.
package notifications
