package main

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/pulse/internal/pulse/platform"
	"github.com/coral-mesh/pulse/internal/pulse/storage"
	"github.com/coral-mesh/pulse/internal/pulse/tags"
	"github.com/coral-mesh/pulse/pkg/pulse"
)

// runDemo exercises the capture engine end to end: it registers a main
// thread that records nested scoped events and a tag every simulated
// frame, plus cfg.DemoThreadCount worker threads that each record one
// scoped event per tick, and drives NextFrame until stop is closed. It
// never calls StartCapture itself — a capture client (the GUI) drives
// that over the wire;
// running with no client attached exercises the "no-capture no-op" path
// of spec §8.
func runDemo(logger zerolog.Logger, cfg Config, stop <-chan struct{}) error {
	opts := []pulse.Option{pulse.WithLogger(logger)}
	if cfg.GPUQueryCapacity > 0 {
		opts = append(opts, pulse.WithGPUQueryCapacity(cfg.GPUQueryCapacity))
	}
	session, err := pulse.NewSession(opts...)
	if err != nil {
		return err
	}
	defer session.Close()

	board := session.Board()
	frameDesc, err := board.CreateDescription("Frame", "demo.go", 0, 0, 0)
	if err != nil {
		return err
	}
	workDesc, err := board.CreateSharedDescription("DoWork", "demo.go", 0, 0, 0)
	if err != nil {
		return err
	}
	iterDesc, err := board.CreateSharedDescription("iterations", "demo.go", 0, 0, 0)
	if err != nil {
		return err
	}

	mainHandle := session.RegisterThread("Main", platform.ThreadID(), 32, 0, 0)

	var wg sync.WaitGroup
	workerStop := make(chan struct{})
	for i := 0; i < cfg.DemoThreadCount; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			runWorker(session, idx, workerStop)
		}(i)
	}

	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			close(workerStop)
			wg.Wait()
			return nil
		case <-ticker.C:
			span := storage.Start(mainHandle, frameDesc)
			n := session.NextFrame()
			work := storage.Start(mainHandle, workDesc)
			tags.Uint32(mainHandle, iterDesc, n)
			time.Sleep(time.Duration(rand.Intn(2)) * time.Millisecond)
			work.Stop()
			span.Stop()
		}
	}
}

// runWorker registers its own thread and records a scoped event on a
// jittered cadence, demonstrating that Handles are safe to hold in a
// goroutine-confined variable across the goroutine's lifetime.
func runWorker(session *pulse.Session, idx int, stop <-chan struct{}) {
	handle := session.RegisterThread("Worker", platform.ThreadID(), 16, 0, 0)
	board := session.Board()
	workDesc, err := board.CreateSharedDescription("Worker.Step", "demo.go", 0, 0, 0)
	if err != nil {
		return
	}

	ticker := time.NewTicker(time.Duration(8+idx*2) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			span := storage.Start(handle, workDesc)
			time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond)
			span.Stop()
		}
	}
}
