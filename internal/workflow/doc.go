// Package workflow schedules queued jobs across a bounded worker pool and
// drives each job through the subtitle pipeline stages. Workers claim pending
// jobs atomically, run stages in order, and hand terminal jobs to the
// workspace and notification layers exactly once.
package workflow
