// Package logging provides structured logging helpers built on log/slog.
//
// It centralizes attribute names so guard decisions, tool invocations and
// Kubernetes calls log with the same keys, and it builds the process logger
// from the --log-format and --debug flags:
//
//	logger := logging.NewLogger(os.Stderr, logging.FormatJSON, debug)
//	logging.WithTool(logger, "resources.apply").Info("applied",
//	    logging.Namespace("default"),
//	    logging.ResourceType("ConfigMap"))
//
// API server addresses in errors are redacted with SanitizedErr, and secret
// values are only ever logged through SanitizeSecretValue.
package logging
