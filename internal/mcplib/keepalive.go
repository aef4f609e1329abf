package mcplib

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Keepalive closes a library's connection once it has gone unused for its
// idle timeout. Calls in flight hold the connection open.
type Keepalive struct {
	mu          sync.Mutex
	timers      map[string]*time.Timer
	timerIDs    map[string]uint64
	nextTimerID uint64
	inFlight    map[string]int
	timeout     func(path string) time.Duration
	closeFn     func(path string)
}

// NewKeepalive creates a keepalive that asks timeout for each path's idle
// window and calls closeFn when it elapses.
func NewKeepalive(timeout func(path string) time.Duration, closeFn func(path string)) *Keepalive {
	return &Keepalive{
		timers:   make(map[string]*time.Timer),
		timerIDs: make(map[string]uint64),
		inFlight: make(map[string]int),
		timeout:  timeout,
		closeFn:  closeFn,
	}
}

// Begin marks a call in flight for path and cancels its idle timer.
func (k *Keepalive) Begin(path string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.cancelLocked(path)
	k.inFlight[path]++
}

// End marks a call for path complete. The idle timer starts once the last
// call in flight ends.
func (k *Keepalive) End(path string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	n := k.inFlight[path]
	if n > 1 {
		k.inFlight[path] = n - 1
		return
	}
	delete(k.inFlight, path)
	k.startTimerLocked(path)
}

func (k *Keepalive) cancelLocked(path string) {
	if t, ok := k.timers[path]; ok {
		t.Stop()
		delete(k.timers, path)
		delete(k.timerIDs, path)
	}
}

func (k *Keepalive) startTimerLocked(path string) {
	k.cancelLocked(path)

	k.nextTimerID++
	timerID := k.nextTimerID
	k.timers[path] = time.AfterFunc(k.timeout(path), func() {
		k.expire(path, timerID)
	})
	k.timerIDs[path] = timerID
}

func (k *Keepalive) expire(path string, timerID uint64) {
	k.mu.Lock()
	defer k.mu.Unlock()

	currentID, ok := k.timerIDs[path]
	if !ok || currentID != timerID || k.inFlight[path] > 0 {
		return
	}
	delete(k.timers, path)
	delete(k.timerIDs, path)

	log.Debug().Str("path", path).Msg("closing idle MCP connection")
	if k.closeFn != nil {
		k.closeFn(path)
	}
}

// Stop cancels all timers.
func (k *Keepalive) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, t := range k.timers {
		t.Stop()
	}
	k.timers = make(map[string]*time.Timer)
	k.timerIDs = make(map[string]uint64)
	k.inFlight = make(map[string]int)
}
