//go:build linux

package process_linux

import (
	"os"
	"path/filepath"
	"strconv"

	"memwatch/process"
	"memwatch/process_blob"
)

// Save captures the process into dirname in the layout process_blob.ProcessDump loads.
func (p *LinuxProcess) Save(dirname string) error {
	pid := p.GetPID()
	return process_blob.Capture(p, processName(pid), dirname, p.log)
}

func processName(pid process.ProcessID) string {
	comm, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(int(pid)), "comm"))
	if err != nil {
		return "unknown"
	}
	return string(bytesTrimNL(comm))
}
