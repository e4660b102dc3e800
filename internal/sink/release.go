// ABOUTME: Process-scoped background worker for asynchronous device teardown
// ABOUTME: Bounded, created on first use, shut down when the last release completes
package sink

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/playsync/playsync-go/internal/device"
)

// Device release can take tens of milliseconds on some platforms, so it
// never runs on the playback thread. A single shared worker bounds
// concurrent teardown across all sink instances; the per-sink in-flight
// guard bounds device handle usage to at most two per sink (one live, one
// releasing).
var (
	releaseMu      sync.Mutex
	releaseQueue   []func()
	releaseRunning bool
)

// releaseDeviceAsync queues out for release on the shared worker. done runs
// on the worker after the release finishes; callers use it to post back a
// completion command.
func releaseDeviceAsync(out device.Output, done func()) {
	releaseMu.Lock()
	releaseQueue = append(releaseQueue, func() {
		if err := out.Release(); err != nil {
			logrus.WithError(err).Warn("async device release failed")
		}
		if done != nil {
			done()
		}
	})
	if !releaseRunning {
		releaseRunning = true
		go releaseWorker()
	}
	releaseMu.Unlock()
}

// releaseWorker drains the queue and exits when it is empty, so the process
// carries no idle goroutine between flushes.
func releaseWorker() {
	for {
		releaseMu.Lock()
		if len(releaseQueue) == 0 {
			releaseRunning = false
			releaseMu.Unlock()
			return
		}
		job := releaseQueue[0]
		releaseQueue = releaseQueue[1:]
		releaseMu.Unlock()

		job()
	}
}
