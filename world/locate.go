// Package world finds the game world: the object manager through a code
// signature in the engine module, then the world object by searching the
// manager's active-object list from both ends at once.
package world

import (
	"errors"
	"fmt"

	"memwatch/hexdump"
	"memwatch/offsets"
	"memwatch/process"

	"github.com/Moonlight-Companies/gologger/logger"
)

var (
	ErrSignatureNotFound = errors.New("manager signature not found")
	ErrManagerNotReady   = errors.New("object manager not initialised")
	ErrAnchorNotFound    = errors.New("world anchor not found")
)

// Target is what the locator needs from a process.
type Target interface {
	process.Reader
	process.MemoryScanner
	FindModule(name string) (process.Module, error)
}

// LocateManager scans the configured module for the signature, decodes the
// RIP-relative displacement of the first match and dereferences the global it
// points at.
func LocateManager(proc Target, cfg offsets.Config, log *logger.Logger) (process.ProcessMemoryAddress, error) {
	module, err := proc.FindModule(cfg.Target.Module)
	if err != nil {
		return 0, err
	}

	aob, err := process.ParseAOB(cfg.Signature.Pattern)
	if err != nil {
		return 0, fmt.Errorf("signature pattern: %w", err)
	}

	matches, err := proc.ScanRange(aob, module.Base, module.End())
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", module, err)
	}
	if len(matches) == 0 {
		return 0, fmt.Errorf("%w in %s", ErrSignatureNotFound, module)
	}
	if len(matches) > 1 {
		log.Warn("Signature matched ", len(matches), " times, using the first at ", matches[0])
	}
	match := matches[0]

	if code, err := process.ReadBytes(proc, match, process.ProcessMemorySize(len(aob.Pattern))); err == nil {
		log.Debugln("Signature match\n" + hexdump.Plain(code, uint64(match)))
	}

	disp, err := process.Read[int32](proc, match.Add(cfg.Signature.DisplacementOffset))
	if err != nil {
		return 0, fmt.Errorf("signature displacement: %w", err)
	}
	global := process.ProcessMemoryAddress(int64(match) + int64(cfg.Signature.InstructionLength) + int64(disp))

	manager, err := process.ReadPointer(proc, global)
	if err != nil {
		return 0, fmt.Errorf("manager global %s: %w", global, err)
	}
	if manager == 0 {
		return 0, fmt.Errorf("%w: global %s is null", ErrManagerNotReady, global)
	}

	log.Infoln("Object manager at", manager)
	return manager, nil
}
