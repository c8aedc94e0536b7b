// Package logging configures snot's structured logging on top of
// charmbracelet/log.
//
// All log output goes to stderr; stdout is reserved for reporters. Call Setup
// once while the CLI starts, then create component loggers with New:
//
//	var logger = logging.New("runner")
//	logger.Info("declared result", "identity", id, "status", "TO_BE_RUN")
//
// Child loggers copy the default logger's settings when they are created, so
// Setup has to run before New.
package logging
