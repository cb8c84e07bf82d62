//go:build !linux && !windows

package main

import (
	"errors"

	"memwatch/process"
)

func openLive(name string, pid int) (process.Process, error) {
	return nil, errors.New("live attach is only supported on linux and windows; use -dump")
}
