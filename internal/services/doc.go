// Package services provides shared helpers for external service adapters:
// the sentinel error taxonomy used to classify job failures and context
// annotations that carry job/stage/request identifiers into logs.
package services
