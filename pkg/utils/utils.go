package utils

import (
	"os"
	"strings"
	"syscall"
)

// Package utils contains general utility functions.

var signals = map[string]syscall.Signal{
	"SIGHUP":  syscall.SIGHUP,
	"SIGINT":  syscall.SIGINT,
	"SIGQUIT": syscall.SIGQUIT,
	"SIGTERM": syscall.SIGTERM,
	"SIGKILL": syscall.SIGKILL,
	"SIGUSR1": syscall.SIGUSR1,
	"SIGUSR2": syscall.SIGUSR2,
}

// MapSignal converts a signal name (case-insensitive, "SIG" prefix
// optional) to an os.Signal. Returns nil if the name is not recognized.
func MapSignal(signalName string) os.Signal {
	name := strings.ToUpper(strings.TrimSpace(signalName))
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	if sig, ok := signals[name]; ok {
		return sig
	}
	return nil
}

// SignalNames lists the names MapSignal accepts, in canonical form.
func SignalNames() []string {
	return []string{"SIGHUP", "SIGINT", "SIGQUIT", "SIGTERM", "SIGKILL", "SIGUSR1", "SIGUSR2"}
}
