//go:build windows

package process_windows

import (
	"memwatch/process"
	"memwatch/process_blob"
)

// Save captures the process into dirname in the layout process_blob.ProcessDump loads.
func (p *WindowsProcess) Save(dirname string) error {
	name := "unknown"
	if m, err := p.mainModule(); err == nil {
		name = m.Name
	}
	return process_blob.Capture(p, name, dirname, p.log)
}

// mainModule is the first entry of the module snapshot, the executable image.
func (p *WindowsProcess) mainModule() (process.Module, error) {
	modules, err := listModules(p.GetPID())
	if err != nil {
		return process.Module{}, err
	}
	if len(modules) == 0 {
		return process.Module{}, process.ErrModuleNotFound
	}
	return modules[0], nil
}
