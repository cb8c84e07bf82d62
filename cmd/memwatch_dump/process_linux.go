package main

import (
	"memwatch/process"
	"memwatch/process_linux"
)

func save(name string, pid int, dir string) error {
	if pid == 0 {
		info, err := process_linux.OneByName(name)
		if err != nil {
			return err
		}
		pid = int(info.PID)
	}

	proc, err := process_linux.NewWithPID(process.ProcessID(pid))
	if err != nil {
		return err
	}
	defer proc.Close()
	return proc.Save(dir)
}
