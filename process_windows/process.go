//go:build windows

package process_windows

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	"memwatch/process"
	"memwatch/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/windows"
)

const (
	accessRights = windows.PROCESS_VM_READ | windows.PROCESS_QUERY_INFORMATION
	stillActive  = 259
	userSpaceEnd = 0x7FFFFFFFFFFF
)

// WindowsProcess implements the process.Process interface on top of a
// PROCESS_VM_READ handle.
type WindowsProcess struct {
	pid    process.ProcessID
	handle windows.Handle
	log    *logger.Logger
	mm     []memory_map.MemoryMapItem
	mu     sync.Mutex
}

var _ process.Process = (*WindowsProcess)(nil)

// New creates a new, unopened WindowsProcess instance
func New() *WindowsProcess {
	return &WindowsProcess{
		log: logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open")),
	}
}

// NewWithPID creates a new WindowsProcess instance and opens it with the given PID
func NewWithPID(pid process.ProcessID) (*WindowsProcess, error) {
	p := New()
	if err := p.Open(pid); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *WindowsProcess) Open(pid process.ProcessID) error {
	handle, err := windows.OpenProcess(accessRights, false, uint32(pid))
	if err != nil {
		return fmt.Errorf("OpenProcess %d: %w", pid, err)
	}

	p.mu.Lock()
	p.pid = pid
	p.handle = handle
	p.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))
	p.mu.Unlock()

	if err := p.UpdateMemoryMap(); err != nil {
		p.Close()
		return fmt.Errorf("failed to initialize memory map: %w", err)
	}

	p.log.Infoln("Process opened")
	return nil
}

func (p *WindowsProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if p.handle != 0 {
		err = windows.CloseHandle(p.handle)
		p.handle = 0
	}
	p.pid = 0
	p.mm = nil
	p.log.Infoln("Process closed")
	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))
	return err
}

func (p *WindowsProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

// alive reports ErrProcessNotOpen once the target has exited.
func (p *WindowsProcess) alive(handle windows.Handle) error {
	if handle == 0 {
		return process.ErrProcessNotOpen
	}
	var code uint32
	if err := windows.GetExitCodeProcess(handle, &code); err != nil {
		return fmt.Errorf("%w: %v", process.ErrProcessNotOpen, err)
	}
	if code != stillActive {
		return fmt.Errorf("%w: exited with %d", process.ErrProcessNotOpen, code)
	}
	return nil
}

// UpdateMemoryMap walks the address space with VirtualQueryEx and labels image
// regions with the path of the module that owns them.
func (p *WindowsProcess) UpdateMemoryMap() error {
	p.mu.Lock()
	handle, pid := p.handle, p.pid
	p.mu.Unlock()
	if err := p.alive(handle); err != nil {
		return err
	}

	modules, err := listModules(pid)
	if err != nil {
		p.log.Warn("Module snapshot failed: ", err)
	}

	var mm []memory_map.MemoryMapItem
	var mbi windows.MemoryBasicInformation
	for addr := uintptr(0); uint64(addr) < userSpaceEnd; {
		if err := windows.VirtualQueryEx(handle, addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
			break // past the last region
		}
		if mbi.RegionSize == 0 {
			break
		}
		if mbi.State == memCommit {
			item := memory_map.MemoryMapItem{
				Address: uint64(mbi.BaseAddress),
				Size:    uint(mbi.RegionSize),
				Perms:   PermsFromProtect(mbi.State, mbi.Protect, mbi.Type),
			}
			for _, m := range modules {
				if m.Base <= process.ProcessMemoryAddress(item.Address) && process.ProcessMemoryAddress(item.Address) < m.End() {
					item.Path = m.Path
					break
				}
			}
			mm = append(mm, item)
		}
		next := mbi.BaseAddress + mbi.RegionSize
		if next <= addr {
			break // wrapped
		}
		addr = next
	}

	memory_map.Sort(mm)

	p.mu.Lock()
	p.mm = mm
	p.mu.Unlock()
	return nil
}

func (p *WindowsProcess) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isValidAddressInternal(addr)
}

func (p *WindowsProcess) isValidAddressInternal(addr process.ProcessMemoryAddress) bool {
	if addr <= 0x10000 || addr > userSpaceEnd {
		return false
	}
	item := memory_map.FindRegion(uint64(addr), p.mm)
	return item != nil && item.IsReadable()
}

func (p *WindowsProcess) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == 0 {
		return nil, process.ErrProcessNotOpen
	}
	result := make([]memory_map.MemoryMapItem, len(p.mm))
	copy(result, p.mm)
	return result, nil
}

// FindModule resolves a loaded module from a fresh toolhelp snapshot. Module
// names compare case-insensitively like the loader does.
func (p *WindowsProcess) FindModule(name string) (process.Module, error) {
	pid := p.GetPID()
	if pid == 0 {
		return process.Module{}, process.ErrProcessNotOpen
	}

	modules, err := listModules(pid)
	if err != nil {
		return process.Module{}, err
	}
	for _, m := range modules {
		if strings.EqualFold(m.Name, name) {
			p.log.Debugln("Resolved module", m.String())
			return m, nil
		}
	}
	return process.Module{}, fmt.Errorf("%w: %s", process.ErrModuleNotFound, name)
}

func listModules(pid process.ProcessID) ([]process.Module, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, uint32(pid))
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ModuleEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	var modules []process.Module
	err = windows.Module32First(snap, &entry)
	for err == nil {
		path := windows.UTF16ToString(entry.ExePath[:])
		modules = append(modules, process.Module{
			Name: filepath.Base(path),
			Path: path,
			Base: process.ProcessMemoryAddress(entry.ModBaseAddr),
			Size: process.ProcessMemorySize(entry.ModBaseSize),
		})
		err = windows.Module32Next(snap, &entry)
	}
	if !errors.Is(err, windows.ERROR_NO_MORE_FILES) {
		return modules, fmt.Errorf("Module32Next: %w", err)
	}
	return modules, nil
}
