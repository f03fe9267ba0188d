// Package persist flushes the session's settings aggregate to the durable
// store, decoupled from the read/refresh path. Writes are debounced and
// serialized: bursts of mutations collapse into one write carrying the final
// state, and at most one write is ever in flight.
package persist

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Dxboy266/The-Stoic-Leek/internal/models"
)

// Sink is the durable destination for settings blobs.
type Sink interface {
	Save(ctx context.Context, settings *models.Settings) error
}

// Snapshot returns the current settings state. It is invoked when a write
// actually executes, not when it is scheduled, so a debounced write always
// carries the latest state.
type Snapshot func() *models.Settings

// Syncer is the debounced writer.
type Syncer struct {
	sink     Sink
	snapshot Snapshot
	window   time.Duration
	timeout  time.Duration
	log      *zap.SugaredLogger

	mu       sync.Mutex
	timer    *time.Timer
	inFlight bool
	pending  bool
	closed   bool
	writes   sync.WaitGroup
}

// NewSyncer creates a syncer that waits window after the last Notify before
// writing, and bounds each write by timeout.
func NewSyncer(sink Sink, snapshot Snapshot, window, timeout time.Duration, log *zap.SugaredLogger) *Syncer {
	return &Syncer{
		sink:     sink,
		snapshot: snapshot,
		window:   window,
		timeout:  timeout,
		log:      log,
	}
}

// Notify schedules a write for one debounce window from now. A Notify during
// the quiet period resets the timer rather than stacking another write.
func (s *Syncer) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.window, s.fire)
}

// fire runs when the debounce window elapses. If a write is already in
// flight, exactly one follow-up is remembered; otherwise a write starts.
// A fire that lost the race against Flush stopping its timer must not start
// a write behind Flush's back.
func (s *Syncer) fire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.inFlight {
		s.pending = true
		return
	}
	s.startWriteLocked()
}

// startWriteLocked launches the asynchronous write. Caller holds s.mu.
func (s *Syncer) startWriteLocked() {
	s.inFlight = true
	s.writes.Add(1)
	go s.write()
}

func (s *Syncer) write() {
	defer s.writes.Done()

	settings := s.snapshot()
	// An empty aggregate is never persisted: it would clobber a previously
	// saved blob with state that simply has not loaded yet.
	if settings.IsEmpty() {
		s.log.Debugw("skipping persistence of empty state")
		s.finish()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.sink.Save(ctx, settings); err != nil {
		// No automatic retry and no rollback: the in-memory state stays
		// authoritative until the next mutation triggers another attempt.
		s.log.Errorw("persistence write failed", "error", err)
	} else {
		s.log.Debugw("persisted settings", "funds", len(settings.Funds))
	}
	s.finish()
}

// finish clears the in-flight flag and starts the follow-up write if a
// mutation arrived while the last write was running.
func (s *Syncer) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight = false
	if s.pending && !s.closed {
		s.pending = false
		s.startWriteLocked()
	}
}

// Flush cancels any scheduled write, performs a final synchronous write of
// the current state, and waits for in-flight writes to settle. Flush is
// terminal: later Notify calls are ignored. Intended for orderly shutdown.
func (s *Syncer) Flush(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	// closed is set under the same lock fire takes, so any write not yet
	// registered with the group at this point will never start; waiting here
	// leaves exactly the final synchronous write below.
	s.writes.Wait()

	settings := s.snapshot()
	if settings.IsEmpty() {
		return nil
	}
	return s.sink.Save(ctx, settings)
}
