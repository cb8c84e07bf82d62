package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memwatch/broadcast"
	"memwatch/offsets"
	"memwatch/process"
	"memwatch/process_blob"
	"memwatch/session"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	processFlag := flag.String("process", "", "Target process name (defaults to target.process from the offsets)")
	pidFlag := flag.Int("pid", 0, "Attach to this PID instead of searching by name")
	offsetsFlag := flag.String("offsets", "", "YAML file overriding the built-in offsets")
	listenFlag := flag.String("listen", ":54124", "HTTP address serving /ws, /latest and /metrics (empty disables)")
	intervalFlag := flag.Duration("interval", time.Second/60, "Sampling interval")
	refreshFlag := flag.Int("refresh", 600, "Re-enumerate entities every N cycles (0 disables)")
	dumpFlag := flag.String("dump", "", "Replay a dump directory instead of attaching to a live process")
	flag.Parse()

	log := logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "memwatch"))

	cfg, err := offsets.Load(*offsetsFlag)
	if err != nil {
		fmt.Printf("Error loading offsets: %v\n", err)
		os.Exit(1)
	}
	if *processFlag != "" {
		cfg.Target.Process = *processFlag
	}

	proc, err := openTarget(cfg.Target.Process, *pidFlag, *dumpFlag)
	if err != nil {
		fmt.Printf("Error opening target: %v\n", err)
		os.Exit(1)
	}
	defer proc.Close()
	log.Infoln("Attached to", cfg.Target.Process, "pid", proc.GetPID())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	hub := broadcast.NewHub(reg)
	defer hub.Close()

	var srv *http.Server
	if *listenFlag != "" {
		srv = &http.Server{Addr: *listenFlag, Handler: hub.Handler(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Infoln("Listening on", *listenFlag)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("HTTP server failed: ", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scfg := session.DefaultConfig()
	scfg.Offsets = cfg
	scfg.Interval = *intervalFlag
	scfg.Refresh = *refreshFlag

	runErr := session.New(proc, scfg, hub, session.NewMetrics(reg)).Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		srv.Shutdown(shutdownCtx)
		cancel()
	}
	if runErr != nil {
		fmt.Printf("Session ended: %v\n", runErr)
		os.Exit(1)
	}
}

func openTarget(name string, pid int, dump string) (process.Process, error) {
	if dump != "" {
		d := process_blob.NewProcessDump()
		if err := d.Load(dump); err != nil {
			return nil, err
		}
		return d, nil
	}
	return openLive(name, pid)
}
