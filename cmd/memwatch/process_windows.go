package main

import (
	"memwatch/process"
	"memwatch/process_windows"
)

func openLive(name string, pid int) (process.Process, error) {
	if pid != 0 {
		return process_windows.NewWithPID(process.ProcessID(pid))
	}
	return process_windows.NewHelper().OpenProcessByName(name)
}
