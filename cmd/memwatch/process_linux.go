package main

import (
	"memwatch/process"
	"memwatch/process_linux"
)

func openLive(name string, pid int) (process.Process, error) {
	if pid != 0 {
		return process_linux.NewWithPID(process.ProcessID(pid))
	}
	return process_linux.NewHelper().OpenProcessByName(name)
}
