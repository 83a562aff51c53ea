// Package logging builds the slog loggers used across copydesk and carries
// standardized attribute keys so stage, item, and run identifiers appear
// consistently in every record.
package logging
