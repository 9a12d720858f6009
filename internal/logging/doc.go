// Package logging wraps log/slog with the handlers and field conventions used
// across sublingo: a human console handler, a JSON handler, attribute helpers,
// and context-derived job/stage/correlation fields.
package logging
