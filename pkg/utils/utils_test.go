package utils

import (
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapSignal(t *testing.T) {
	tests := []struct {
		in   string
		want os.Signal
	}{
		{"SIGHUP", syscall.SIGHUP},
		{"sighup", syscall.SIGHUP},
		{"hup", syscall.SIGHUP},
		{" SIGTERM ", syscall.SIGTERM},
		{"int", syscall.SIGINT},
		{"SIGKILL", syscall.SIGKILL},
		{"SIGBOGUS", nil},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MapSignal(tt.in))
		})
	}
}

func TestSignalNamesAreMapped(t *testing.T) {
	for _, name := range SignalNames() {
		assert.NotNil(t, MapSignal(name), name)
	}
}
