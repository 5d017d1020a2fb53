// Package logging provides structured logging for Allotment Core.
//
// Built on the standard library's log/slog, it adds:
//   - Configuration-driven format (JSON/text) and level selection
//   - Default service/version attributes on every record
//   - Component-scoped child loggers via With()
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("listener started", "topic", topic)
//
//	ingestLog := log.With("component", "ingest")
package logging
