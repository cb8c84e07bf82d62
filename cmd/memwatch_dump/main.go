package main

import (
	"flag"
	"fmt"
	"os"

	"memwatch/offsets"
)

func main() {
	pidFlag := flag.Int("pid", 0, "Process ID to attach to")
	processFlag := flag.String("process", offsets.Default().Target.Process, "Process name, used when -pid is not set")
	outputFlag := flag.String("output", "", "Output directory for the dump")
	flag.Parse()

	if *outputFlag == "" {
		fmt.Println("Error: --output is required")
		flag.Usage()
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputFlag, 0755); err != nil {
		fmt.Printf("Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Saving dump to %s...\n", *outputFlag)
	if err := save(*processFlag, *pidFlag, *outputFlag); err != nil {
		fmt.Printf("Error saving dump: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Dump saved successfully.")
}
