//go:build windows

package mcp

import (
	"os"
	"os/signal"
)

// SIGTERM does not exist on Windows.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
