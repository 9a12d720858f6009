// Package daemon runs the long-lived sublingo process: it holds the
// single-instance lock, polls the message channel for new videos and
// commands, and feeds admitted jobs to the workflow manager.
package daemon
