// Package telemetry samples the vehicle on a fixed cadence and fans the
// position out to any number of subscribers.
package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/skycourier/internal/pkg/metrics"
	"github.com/autopeer-io/skycourier/internal/vehicle"
	"github.com/autopeer-io/skycourier/pkg/log"
)

// Frame is the message sent to subscribers once per cycle.
type Frame struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Altitude  float64 `json:"alt"`
}

// FrameOf projects a snapshot onto the broadcast fields.
func FrameOf(s vehicle.Snapshot) Frame {
	return Frame{Latitude: s.Latitude, Longitude: s.Longitude, Altitude: s.Altitude}
}

// Subscriber receives encoded frames. Send must honour ctx; an error removes
// the subscriber and closes it.
type Subscriber interface {
	ID() string
	Kind() string
	Send(ctx context.Context, frame []byte) error
	Close() error
}

// Broadcaster reads the shared link once per interval and delivers the frame
// to every subscriber. It never issues commands.
type Broadcaster struct {
	reader      vehicle.SnapshotReader
	interval    time.Duration
	sendTimeout time.Duration
	logger      log.Logger
	clock       clock.WithTicker

	mu   sync.RWMutex
	subs map[string]Subscriber

	lastFrame atomic.Int64 // unix nanos of the last successful read
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithInterval sets the broadcast cadence.
func WithInterval(d time.Duration) Option {
	return func(b *Broadcaster) { b.interval = d }
}

// WithSendTimeout bounds delivery of one frame to one subscriber.
func WithSendTimeout(d time.Duration) Option {
	return func(b *Broadcaster) { b.sendTimeout = d }
}

// WithLogger sets the broadcaster's logger.
func WithLogger(l log.Logger) Option {
	return func(b *Broadcaster) { b.logger = l }
}

// WithClock sets the ticker source.
func WithClock(clk clock.WithTicker) Option {
	return func(b *Broadcaster) { b.clock = clk }
}

// NewBroadcaster returns a broadcaster sampling reader at 1 Hz.
func NewBroadcaster(reader vehicle.SnapshotReader, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		reader:      reader,
		interval:    time.Second,
		sendTimeout: 2 * time.Second,
		logger:      log.WithName("telemetry"),
		clock:       clock.RealClock{},
		subs:        make(map[string]Subscriber),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run broadcasts until ctx is done, then closes every subscriber.
func (b *Broadcaster) Run(ctx context.Context) error {
	b.logger.Info("Starting telemetry broadcaster", "interval", b.interval)

	ticker := b.clock.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			b.broadcastOnce(ctx)
		case <-ctx.Done():
			b.logger.Info("Shutting down telemetry broadcaster")
			b.closeAll()
			return nil
		}
	}
}

// Start implements the server manager's Server interface.
func (b *Broadcaster) Start(ctx context.Context) error { return b.Run(ctx) }

// broadcastOnce performs a single read and fan-out cycle.
func (b *Broadcaster) broadcastOnce(ctx context.Context) {
	s, err := b.reader.Snapshot(ctx)
	if err != nil {
		if ctx.Err() == nil {
			metrics.SnapshotErrorsTotal.WithLabelValues("telemetry").Inc()
			b.logger.Warn("Skipping telemetry cycle", "error", err.Error())
		}
		return
	}
	b.lastFrame.Store(b.clock.Now().UnixNano())

	frame, err := json.Marshal(FrameOf(s))
	if err != nil {
		b.logger.Error(err, "Failed to encode telemetry frame")
		return
	}

	// Send to a copy so a subscriber leaving mid-cycle never blocks the rest.
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	var g errgroup.Group
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, b.sendTimeout)
			defer cancel()
			if err := sub.Send(sctx, frame); err != nil {
				if ctx.Err() == nil {
					b.logger.Info("Dropping telemetry subscriber", "id", sub.ID(), "kind", sub.Kind(), "error", err.Error())
					metrics.TelemetryDroppedTotal.WithLabelValues(sub.Kind()).Inc()
				}
				b.Unsubscribe(sub.ID())
				return nil
			}
			metrics.TelemetryFramesTotal.Inc()
			return nil
		})
	}
	_ = g.Wait()
}

// Subscribe registers sub. A subscriber with the same ID is replaced and
// closed.
func (b *Broadcaster) Subscribe(sub Subscriber) {
	b.mu.Lock()
	prev, ok := b.subs[sub.ID()]
	b.subs[sub.ID()] = sub
	n := len(b.subs)
	b.mu.Unlock()

	metrics.TelemetrySubscribers.Set(float64(n))
	if ok && prev != sub {
		_ = prev.Close()
	}
	b.logger.Debug("Telemetry subscriber added", "id", sub.ID(), "kind", sub.Kind())
}

// Unsubscribe removes and closes the subscriber with id. It reports whether
// one was registered.
func (b *Broadcaster) Unsubscribe(id string) bool {
	b.mu.Lock()
	sub, ok := b.subs[id]
	delete(b.subs, id)
	n := len(b.subs)
	b.mu.Unlock()

	if !ok {
		return false
	}
	metrics.TelemetrySubscribers.Set(float64(n))
	if err := sub.Close(); err != nil {
		b.logger.Debug("Closing telemetry subscriber failed", "id", id, "error", err.Error())
	}
	return true
}

// Len returns the number of registered subscribers.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// LastFrameAt returns the time of the last successful read, or the zero
// time if there has been none.
func (b *Broadcaster) LastFrameAt() time.Time {
	ns := b.lastFrame.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Interval returns the broadcast cadence.
func (b *Broadcaster) Interval() time.Duration { return b.interval }

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]Subscriber)
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	metrics.TelemetrySubscribers.Set(0)
}
