//go:build !linux && !windows

package main

import "errors"

func save(name string, pid int, dir string) error {
	return errors.New("saving a live process is only supported on linux and windows")
}
