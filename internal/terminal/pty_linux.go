package terminal

import (
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

const (
	ptmxPath    = "/dev/ptmx"
	slavePrefix = "/dev/pts/"
	slaveMode   = 0o620
)

// openMaster allocates a PTY pair one step at a time so the failing step
// can be reported.
func openMaster() (*os.File, string, error) {
	master, err := os.OpenFile(ptmxPath, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, "", &AllocationError{Phase: PhaseMasterOpen, Err: err}
	}
	fd := int(master.Fd())

	fail := func(phase AllocPhase, err error) (*os.File, string, error) {
		_ = master.Close()
		return nil, "", &AllocationError{Phase: phase, Err: err}
	}

	if err := grantpt(fd); err != nil {
		return fail(PhaseGrant, err)
	}
	if err := unix.IoctlSetPointerInt(fd, unix.TIOCSPTLCK, 0); err != nil {
		return fail(PhaseUnlock, err)
	}
	name, err := ptsname(fd)
	if err != nil {
		return fail(PhaseName, err)
	}
	return master, name, nil
}

// grantpt makes sure the slave is readable and writable by its owner and
// writable by the group. devpts normally creates it that way already.
func grantpt(fd int) error {
	name, err := ptsname(fd)
	if err != nil {
		return err
	}
	var st unix.Stat_t
	if err := unix.Stat(name, &st); err != nil {
		return err
	}
	if st.Mode&0o777 == slaveMode {
		return nil
	}
	return unix.Chmod(name, slaveMode)
}

func ptsname(fd int) (string, error) {
	n, err := unix.IoctlGetInt(fd, unix.TIOCGPTN)
	if err != nil {
		return "", err
	}
	return slavePrefix + strconv.Itoa(n), nil
}
