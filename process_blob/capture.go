package process_blob

import (
	"fmt"

	"memwatch/process"

	"github.com/Moonlight-Companies/gologger/logger"
)

// MaxCapturedRegion skips huge mappings (GPU heaps, reserved arenas).
const MaxCapturedRegion = 100 * 1024 * 1024

// Capture writes the memory map of a live process and every readable region
// below MaxCapturedRegion to dirname in the layout Load reads.
func Capture(proc process.Process, name, dirname string, log *logger.Logger) error {
	pid := proc.GetPID()
	if pid == 0 {
		return process.ErrProcessNotOpen
	}
	log.Infoln("Saving process to directory:", dirname)

	if err := proc.UpdateMemoryMap(); err != nil {
		return fmt.Errorf("failed to update memory map: %w", err)
	}
	mm, err := proc.GetMemoryMap()
	if err != nil {
		return err
	}
	if err := WriteIndex(dirname, Metadata{PID: pid, Name: name}, mm); err != nil {
		return err
	}

	savedCount, errorCount := 0, 0
	for _, region := range mm {
		if !region.IsReadable() {
			continue
		}
		if region.Size > MaxCapturedRegion {
			log.Infoln("Skipping large region at", fmt.Sprintf("%x", region.Address),
				"(size:", region.Size/1024/1024, "MB)")
			continue
		}

		data, err := proc.ReadMemory(process.ProcessMemoryAddress(region.Address), process.ProcessMemorySize(region.Size))
		if err != nil {
			log.Debugln("Failed to read memory region at", fmt.Sprintf("%x", region.Address), ":", err)
			errorCount++
			continue
		}

		if err := WriteBlob(dirname, region, data); err != nil {
			log.Warn("Failed to write memory file for region at ", fmt.Sprintf("%x", region.Address), ": ", err)
			errorCount++
			continue
		}
		savedCount++
	}

	log.Infoln("Process dump saved:", savedCount, "regions saved,", errorCount, "errors")
	return nil
}
