// Package logging builds slog loggers with console or JSON output and
// standardized attribute keys for pipeline observability.
//
// Context carriers (WithOutput, WithStage, WithScene) thread identifiers
// through stage execution so every log line produced under a stage carries
// output_id/stage/scene without each call site repeating them. The console
// handler renders those as a [output/stage] subject prefix.
package logging
