//go:build !linux

package terminal

import (
	"os"

	"github.com/creack/pty"
)

func openMaster() (*os.File, string, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, "", &AllocationError{Phase: PhaseMasterOpen, Err: err}
	}
	name := slave.Name()
	if err := slave.Close(); err != nil {
		_ = master.Close()
		return nil, "", &AllocationError{Phase: PhaseName, Err: err}
	}
	return master, name, nil
}
