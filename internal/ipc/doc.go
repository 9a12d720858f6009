// Package ipc exposes daemon control over a Unix domain socket using
// JSON-RPC. The job store lives in daemon memory, so the CLI inspects and
// mutates the queue exclusively through this channel.
package ipc
