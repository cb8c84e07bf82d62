// Package session drives the engine: it anchors the world, enumerates
// entities and samples them on a fixed interval, retrying with backoff when
// the target is lost.
package session

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"memwatch/entity"
	"memwatch/offsets"
	"memwatch/process"
	"memwatch/sampler"
	"memwatch/scatter"
	"memwatch/world"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/cenkalti/backoff/v4"
)

// Frame is everything sampled in one cycle. Frames are never modified after
// they are published.
type Frame struct {
	Cycle     uint64             `json:"cycle"`
	Time      time.Time          `json:"time"`
	MapName   string             `json:"map"`
	Snapshots []sampler.Snapshot `json:"entities"`
}

// Sink receives every frame from the polling goroutine. Publish must not block.
type Sink interface {
	Publish(frame *Frame)
}

type Config struct {
	Offsets offsets.Config

	// Interval between the starts of two cycles.
	Interval time.Duration

	// Refresh re-enumerates entities every Refresh cycles; 0 disables it.
	Refresh int

	// InitialBackoff and MaxBackoff bound the retry delay after the session is lost.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Offsets:        offsets.Default(),
		Interval:       time.Second / 60,
		Refresh:        600,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}

type Session struct {
	proc    process.Process
	cfg     Config
	sink    Sink
	metrics *Metrics
	log     *logger.Logger

	state  atomic.Int32
	latest atomic.Pointer[Frame]

	// owned by the polling goroutine
	anchor  world.Anchor
	batch   *scatter.Batch
	sampler *sampler.Sampler
	records []entity.Record
	cycle   uint64
}

// New creates a session over proc. sink and metrics may be nil.
func New(proc process.Process, cfg Config, sink Sink, metrics *Metrics) *Session {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	log := logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("session-%d", proc.GetPID())))
	batch := scatter.New(proc)
	return &Session{
		proc:    proc,
		cfg:     cfg,
		sink:    sink,
		metrics: metrics,
		log:     log,
		batch:   batch,
		sampler: sampler.New(batch, log),
	}
}

func (s *Session) State() State { return State(s.state.Load()) }

// Latest returns the most recent frame, or nil before the first cycle.
func (s *Session) Latest() *Frame { return s.latest.Load() }

func (s *Session) setState(st State) {
	if old := State(s.state.Swap(int32(st))); old != st {
		s.log.Debugln("State", old, "->", st)
	}
	s.metrics.State.Set(float64(st))
}

// Run polls until ctx is cancelled or the process is gone. A lost session is
// retried from Uninitialized with exponential backoff; the delay resets once
// sampling succeeds. Cancellation is not an error.
func (s *Session) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer s.setState(Terminated)

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = s.cfg.InitialBackoff
	expo.MaxInterval = s.cfg.MaxBackoff
	expo.MaxElapsedTime = 0

	op := func() error {
		err := s.attach()
		if err == nil {
			expo.Reset()
			err = s.poll(ctx)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if errors.Is(err, process.ErrProcessNotOpen) {
			return backoff.Permanent(err)
		}
		s.setState(Lost)
		return err
	}
	notify := func(err error, delay time.Duration) {
		s.metrics.Retries.Inc()
		s.log.Warn("Session lost, retrying in ", delay.Round(time.Millisecond), ": ", err)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(expo, ctx), notify)
	if ctx.Err() != nil {
		s.log.Infoln("Session stopped after", s.cycle, "cycles")
		return nil
	}
	return err
}

// attach runs Uninitialized -> Anchored -> Populated.
func (s *Session) attach() error {
	s.setState(Uninitialized)
	if err := s.proc.UpdateMemoryMap(); err != nil {
		return fmt.Errorf("memory map: %w", err)
	}

	manager, err := world.LocateManager(s.proc, s.cfg.Offsets, s.log)
	if err != nil {
		return err
	}
	anchor, err := world.Discover(s.proc, manager, s.cfg.Offsets, s.log)
	if err != nil {
		return err
	}
	s.anchor = anchor
	s.setState(Anchored)

	return s.populate()
}

// populate re-enumerates entities into a fresh batch registration.
func (s *Session) populate() error {
	s.batch.Reset()
	pop, err := entity.Enumerate(s.proc, s.batch, s.anchor, s.cfg.Offsets, s.log)
	if err != nil {
		return err
	}
	s.records = pop.Records
	s.metrics.Entities.Set(float64(len(pop.Records)))
	s.metrics.EntitiesDropped.Add(float64(pop.Dropped))
	s.log.Infoln("Enumerated", len(pop.Records), "entities on", s.anchor.MapName, "dropped", pop.Dropped)
	s.setState(Populated)
	return nil
}

// poll samples on the interval until a cycle fails or ctx is done.
func (s *Session) poll(ctx context.Context) error {
	s.setState(Sampling)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for sinceRefresh := 1; ; sinceRefresh++ {
		if err := s.sampleOnce(); err != nil {
			return err
		}

		if s.cfg.Refresh > 0 && sinceRefresh >= s.cfg.Refresh {
			sinceRefresh = 0
			if err := s.populate(); err != nil {
				return err
			}
			s.setState(Sampling)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Session) sampleOnce() error {
	start := time.Now()
	res, err := s.sampler.Cycle(s.records)
	if err != nil {
		return fmt.Errorf("cycle %d: %w", s.cycle+1, err)
	}
	s.cycle++
	s.metrics.Cycles.Inc()
	s.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	s.metrics.SamplesSkipped.Add(float64(res.Skipped))

	frame := &Frame{
		Cycle:     s.cycle,
		Time:      start,
		MapName:   s.anchor.MapName,
		Snapshots: res.Snapshots,
	}
	s.latest.Store(frame)
	if s.sink != nil {
		s.sink.Publish(frame)
	}
	return nil
}
