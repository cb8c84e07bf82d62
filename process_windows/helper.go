//go:build windows

package process_windows

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"memwatch/process"

	"golang.org/x/sys/windows"
)

// WindowsProcessHelper implements process.ProcessOpener with a toolhelp snapshot
type WindowsProcessHelper struct{}

var _ process.ProcessOpener = (*WindowsProcessHelper)(nil)

func NewHelper() *WindowsProcessHelper {
	return &WindowsProcessHelper{}
}

// OpenProcessByName opens a process by its image name (lowest PID wins)
func (h *WindowsProcessHelper) OpenProcessByName(name string) (process.Process, error) {
	info, err := OneByName(name)
	if err != nil {
		return nil, err
	}
	return NewWithPID(info.PID)
}

// ListByName returns every process whose image name matches name, ignoring case.
func ListByName(name string) ([]process.ProcessInfo, error) {
	if name == "" {
		return nil, errors.New("empty name")
	}

	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	var out []process.ProcessInfo
	for err = windows.Process32First(snap, &entry); err == nil; err = windows.Process32Next(snap, &entry) {
		exe := windows.UTF16ToString(entry.ExeFile[:])
		if strings.EqualFold(exe, name) {
			out = append(out, process.ProcessInfo{PID: process.ProcessID(entry.ProcessID), Name: exe})
		}
	}
	if !errors.Is(err, windows.ERROR_NO_MORE_FILES) {
		return out, fmt.Errorf("Process32Next: %w", err)
	}
	return out, nil
}

// OneByName returns the match with the lowest PID.
func OneByName(name string) (process.ProcessInfo, error) {
	list, err := ListByName(name)
	if err != nil {
		return process.ProcessInfo{}, err
	}
	if len(list) == 0 {
		return process.ProcessInfo{}, fmt.Errorf("no process found with name '%s'", name)
	}
	best := list[0]
	for _, info := range list[1:] {
		if info.PID < best.PID {
			best = info
		}
	}
	return best, nil
}
