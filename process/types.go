package process

import "fmt"

// ProcessID represents a unique identifier for a process
type ProcessID int

// ProcessInfo contains basic information about a process
type ProcessInfo struct {
	PID  ProcessID // Process ID
	Name string    // Process name from /proc/[pid]/comm or the exe basename
}

// Module is a loaded image inside a foreign process. Base and Size cover every
// mapping backed by the same file.
type Module struct {
	Name string
	Path string
	Base ProcessMemoryAddress
	Size ProcessMemorySize
}

// End returns the first address past the module image.
func (m Module) End() ProcessMemoryAddress {
	return m.Base + ProcessMemoryAddress(m.Size)
}

func (m Module) String() string {
	return fmt.Sprintf("%s [%s-%s]", m.Name, m.Base, m.End())
}
