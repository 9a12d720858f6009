package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"sublingo/internal/queue"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// colorizeStatus wraps a job status in an ANSI color when the output is a
// terminal: green for completed, red for failed or rejected, yellow for
// anything still moving.
func colorizeStatus(value string, colorize bool) string {
	if !colorize {
		return value
	}
	status, ok := queue.ParseStatus(value)
	if !ok {
		return value
	}
	switch {
	case status == queue.StatusCompleted:
		return ansiGreen + value + ansiReset
	case status == queue.StatusFailed || status == queue.StatusRejected:
		return ansiRed + value + ansiReset
	default:
		return ansiYellow + value + ansiReset
	}
}

func colorizeReady(ready bool, colorize bool) string {
	value := yesNo(ready)
	if !colorize {
		return value
	}
	if ready {
		return ansiGreen + value + ansiReset
	}
	return ansiRed + value + ansiReset
}
