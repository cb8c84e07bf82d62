package process_blob

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"memwatch/process"
	"memwatch/process/memory_map"
)

// On-disk dump layout, shared with process_linux.(*LinuxProcess).Save:
//
//	metadata.json             Metadata
//	process_memory_map.json   []memory_map.MemoryMapItem
//	blob_0x<addr>_<size>.bin  raw region bytes
const (
	MetadataFile  = "metadata.json"
	MemoryMapFile = "process_memory_map.json"
)

type Metadata struct {
	PID  process.ProcessID `json:"pid"`
	Name string            `json:"name"`
}

func BlobFileName(address uint64, size uint) string {
	return fmt.Sprintf("blob_0x%x_%d.bin", address, size)
}

// WriteIndex creates dirname and writes the metadata and memory map files.
func WriteIndex(dirname string, metadata Metadata, mm []memory_map.MemoryMapItem) error {
	if err := os.MkdirAll(dirname, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := writeJSON(filepath.Join(dirname, MetadataFile), metadata); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dirname, MemoryMapFile), mm)
}

// WriteBlob writes the bytes of one region.
func WriteBlob(dirname string, region memory_map.MemoryMapItem, data []byte) error {
	return os.WriteFile(filepath.Join(dirname, BlobFileName(region.Address, region.Size)), data, 0644)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
