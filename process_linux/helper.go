//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"os"

	"memwatch/process"
)

// LinuxProcessHelper implements process.ProcessOpener on top of /proc
type LinuxProcessHelper struct{}

var _ process.ProcessOpener = (*LinuxProcessHelper)(nil)

// NewHelper creates a new LinuxProcessHelper
func NewHelper() *LinuxProcessHelper {
	return &LinuxProcessHelper{}
}

// OpenProcessByName opens a process by its name (lowest PID wins)
func (h *LinuxProcessHelper) OpenProcessByName(name string) (process.Process, error) {
	info, err := OneByName(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no process found with name '%s'", name)
	}
	if err != nil {
		return nil, err
	}

	return NewWithPID(info.PID)
}
