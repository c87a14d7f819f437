package vehicle

import (
	"context"
	"io"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/skycourier/internal/pkg/metrics"
)

// SharedOptions tunes a Shared link.
type SharedOptions struct {
	// SerializeReads makes Snapshot wait for in-flight commands, for
	// transports that cannot read while a command is outstanding.
	SerializeReads bool

	// Clock stamps successful reads. Defaults to the real clock.
	Clock clock.PassiveClock
}

// Shared is the single owner of a process's vehicle link. Commands are
// serialized; reads run concurrently with commands unless SerializeReads is
// set. The mission controller gets the Link from Commander and the
// broadcaster the SnapshotReader from Reader.
type Shared struct {
	link           Link
	serializeReads bool
	clock          clock.PassiveClock

	// cmdMu serializes state-changing commands.
	cmdMu sync.Mutex
	// closeMu is held for reading by every call and for writing by Close.
	closeMu sync.RWMutex
	closed  bool

	stateMu  sync.RWMutex
	last     Snapshot
	lastRead time.Time
}

var _ Link = (*Shared)(nil)

// NewShared takes ownership of link.
func NewShared(link Link, opts SharedOptions) *Shared {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	return &Shared{
		link:           link,
		serializeReads: opts.SerializeReads,
		clock:          opts.Clock,
	}
}

// Commander returns the handle allowed to change vehicle state.
func (s *Shared) Commander() Link { return s }

// Reader returns a read-only handle.
func (s *Shared) Reader() SnapshotReader { return reader{s} }

type reader struct{ s *Shared }

func (r reader) Snapshot(ctx context.Context) (Snapshot, error) { return r.s.Snapshot(ctx) }

func (s *Shared) Snapshot(ctx context.Context) (Snapshot, error) {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return Snapshot{}, NewLinkError(OpSnapshot, ErrClosed)
	}

	if s.serializeReads {
		s.cmdMu.Lock()
		defer s.cmdMu.Unlock()
	}

	snap, err := s.link.Snapshot(ctx)
	if err != nil {
		return Snapshot{}, NewLinkError(OpSnapshot, err)
	}

	s.stateMu.Lock()
	s.last = snap
	s.lastRead = s.clock.Now()
	s.stateMu.Unlock()
	return snap, nil
}

func (s *Shared) SetMode(ctx context.Context, mode Mode) error {
	return s.command(OpSetMode, func() error { return s.link.SetMode(ctx, mode) })
}

func (s *Shared) SetArmed(ctx context.Context, armed bool) error {
	return s.command(OpSetArmed, func() error { return s.link.SetArmed(ctx, armed) })
}

func (s *Shared) Takeoff(ctx context.Context, altitude float64) error {
	return s.command(OpTakeoff, func() error { return s.link.Takeoff(ctx, altitude) })
}

func (s *Shared) Goto(ctx context.Context, lat, lon, altitude float64) error {
	return s.command(OpGoto, func() error { return s.link.Goto(ctx, lat, lon, altitude) })
}

func (s *Shared) command(op string, fn func() error) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return NewLinkError(op, ErrClosed)
	}

	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	start := time.Now()
	err := fn()
	metrics.LinkCommandLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())

	result := "success"
	if err != nil {
		result = "failed"
	}
	metrics.LinkCommandsTotal.WithLabelValues(op, result).Inc()

	return NewLinkError(op, err)
}

// LastSnapshot returns the most recent successful read and when it happened.
// The time is zero before the first read.
func (s *Shared) LastSnapshot() (Snapshot, time.Time) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.last, s.lastRead
}

// Close waits for in-flight calls, then closes the underlying link if it is
// an io.Closer. Later calls fail with ErrClosed.
func (s *Shared) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if c, ok := s.link.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
