// Package logging wraps log/slog with the handlers and field conventions used
// across dialtone. It provides a pretty console handler for interactive use, a
// JSON handler for log files, and standardized attribute keys so components
// stay greppable.
package logging
