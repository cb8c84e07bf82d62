package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"memwatch/entity"
	"memwatch/hexdump"
	"memwatch/offsets"
	"memwatch/process"
	"memwatch/process_blob"
	"memwatch/scatter"
	"memwatch/search"
	"memwatch/world"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

func main() {
	fromFlag := flag.String("from", "", "Directory containing the dump")
	addrFlag := flag.String("addr", "", "Address to read from (hex)")
	chainFlag := flag.String("chain", "", "Comma separated offsets to follow from -addr before dumping")
	sizeFlag := flag.Int("size", 256, "Number of bytes to hexdump")
	offsetsFlag := flag.String("offsets", "", "YAML file overriding the built-in offsets")
	locateFlag := flag.Bool("locate", false, "Locate the world and list its entities")
	findIntFlag := flag.String("find-int32", "", "Search pointer chains from -addr for this int32")
	findWideFlag := flag.String("find-wide", "", "Search pointer chains from -addr for this UTF-16 string")
	depthFlag := flag.Int("depth", 3, "Maximum pointer depth for -find-*")
	flag.Parse()

	if *fromFlag == "" {
		fmt.Println("Error: --from is required")
		flag.Usage()
		os.Exit(1)
	}

	dump := process_blob.NewProcessDump()
	if err := dump.Load(*fromFlag); err != nil {
		fmt.Printf("Error loading dump from %s: %v\n", *fromFlag, err)
		os.Exit(1)
	}
	fmt.Printf("Loaded dump of %s (pid %d), %d regions\n", dump.Name, dump.PID, len(dump.MemoryMap))

	if *locateFlag {
		cfg, err := offsets.Load(*offsetsFlag)
		if err != nil {
			fmt.Printf("Error loading offsets: %v\n", err)
			os.Exit(1)
		}
		if err := locate(dump, cfg); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *addrFlag == "" {
		fmt.Println("\nMemory Map:")
		for _, region := range dump.MemoryMap {
			fmt.Printf("  %016x - %016x (%s) %d bytes %s\n",
				region.Address, region.End(), region.Perms, region.Size, region.Path)
		}
		return
	}

	addrVal, err := parseHex(*addrFlag)
	if err != nil {
		fmt.Printf("Error parsing address: %v\n", err)
		os.Exit(1)
	}
	addr := process.ProcessMemoryAddress(addrVal)

	if *chainFlag != "" {
		var chain []process.ProcessMemorySize
		for _, part := range strings.Split(*chainFlag, ",") {
			off, err := parseHex(strings.TrimSpace(part))
			if err != nil {
				fmt.Printf("Error parsing chain: %v\n", err)
				os.Exit(1)
			}
			chain = append(chain, process.ProcessMemorySize(off))
		}
		if addr, err = process.ResolveChain(dump, addr, chain...); err != nil {
			fmt.Printf("Error following chain: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Chain resolved to %s\n", addr)
	}

	if *findIntFlag != "" || *findWideFlag != "" {
		opts := []search.Option{search.WithMaxDepth(*depthFlag), search.WithMaxStructSize(uint(*sizeFlag))}
		if *findWideFlag != "" {
			opts = append(opts, search.WithWideString(*findWideFlag))
		} else {
			v, err := strconv.ParseInt(*findIntFlag, 0, 32)
			if err != nil {
				fmt.Printf("Error parsing value: %v\n", err)
				os.Exit(1)
			}
			opts = append(opts, search.WithValue(int32(v)))
		}
		if err := find(dump, addr, opts...); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	data, err := dump.ReadMemory(addr, process.ProcessMemorySize(*sizeFlag))
	if err != nil {
		fmt.Printf("Error reading memory at %s: %v\n", addr, err)
		os.Exit(1)
	}

	fmt.Printf("\nHexdump at %s (%d bytes):\n", addr, *sizeFlag)
	fmt.Print(hexdump.Basic(data, uint64(addr), dump.MemoryMap))
}

func locate(dump *process_blob.ProcessDump, cfg offsets.Config) error {
	log := logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "inspect"))

	manager, err := world.LocateManager(dump, cfg, log)
	if err != nil {
		return err
	}
	anchor, err := world.Discover(dump, manager, cfg, log)
	if err != nil {
		return err
	}
	fmt.Printf("Manager %s, world %s, map %q\n", manager, anchor.Address, anchor.MapName)

	pop, err := entity.Enumerate(dump, scatter.New(dump), anchor, cfg, log)
	if err != nil {
		return err
	}
	fmt.Printf("%d entities, %d dropped\n", len(pop.Records), pop.Dropped)
	for _, rec := range pop.Records {
		fmt.Printf("  %s %-12s faction %s human %-5t group %q\n", rec.Base, rec.Class(), rec.Faction, rec.Human, rec.GroupID)
	}
	return nil
}

func find(dump *process_blob.ProcessDump, base process.ProcessMemoryAddress, opts ...search.Option) error {
	results, err := search.Search(dump, base, opts...)
	if err != nil {
		return err
	}
	fmt.Printf("%d chains from %s\n", len(results), base)
	for _, r := range results {
		fmt.Println(" ", r)
	}
	return nil
}

func parseHex(s string) (uint64, error) {
	return strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
}
