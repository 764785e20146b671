// Package services – Tracker
//
// Tracker records scan events off the request path. The redirect handler
// enqueues a ScanInput after the 302 has been written; a fixed pool of workers
// drains the bounded queue, enriches each scan with geolocation and inserts
// one ScanEvent row.
//
// Recording is best effort: a full queue drops the scan, and geolocation or
// insert failures are logged and counted, never retried.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-qrlink-backend/internal/domain"
	"github.com/tbourn/go-qrlink-backend/internal/geo"
)

// ScanRepo persists scan events.
type ScanRepo interface {
	CreateScanEvent(ctx context.Context, db *gorm.DB, ev *domain.ScanEvent) error
}

// GeoLocator resolves an IP to a location; ok=false means unavailable.
type GeoLocator interface {
	Lookup(ctx context.Context, ip string) (*geo.Info, bool)
}

// ScanInput is one observed resolution of a tracked link.
type ScanInput struct {
	ShortLinkID string
	ClientIP    string
	UserAgent   string
	ObservedAt  time.Time
}

// TrackerOptions sizes the worker pool. Zero values fall back to defaults.
type TrackerOptions struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

var (
	scanEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_events_total",
			Help: "Scan events by outcome (recorded, failed, dropped).",
		},
		[]string{"result"},
	)
	scanQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scan_queue_depth",
			Help: "Scans waiting for a tracker worker.",
		},
	)
)

func init() {
	prometheus.MustRegister(scanEvents, scanQueueDepth)
}

// Tracker is a bounded, non-blocking scan recorder.
type Tracker struct {
	DB   *gorm.DB
	Repo ScanRepo
	Geo  GeoLocator

	workers    int
	jobTimeout time.Duration
	queue      chan ScanInput

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewTracker builds a Tracker. geoc may be nil, in which case every scan is
// recorded without location.
func NewTracker(db *gorm.DB, r ScanRepo, geoc GeoLocator, opts TrackerOptions) *Tracker {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 5 * time.Second
	}
	return &Tracker{
		DB:         db,
		Repo:       r,
		Geo:        geoc,
		workers:    opts.Workers,
		jobTimeout: opts.JobTimeout,
		queue:      make(chan ScanInput, opts.QueueSize),
	}
}

// Start launches the worker pool. Calling it more than once is a no-op.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started || t.closed {
		return
	}
	t.started = true
	for i := 0; i < t.workers; i++ {
		t.wg.Add(1)
		go t.loop()
	}
}

// Stop closes the queue and waits for queued scans to be recorded.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.queue)
	started := t.started
	t.mu.Unlock()

	if !started {
		// Never started: drain inline so accepted scans are not lost.
		for in := range t.queue {
			t.run(in)
		}
		return
	}
	t.wg.Wait()
}

// Track enqueues in without blocking. It reports false when the scan was
// dropped because the queue is full or the tracker is stopped.
func (t *Tracker) Track(in ScanInput) bool {
	if in.ObservedAt.IsZero() {
		in.ObservedAt = time.Now().UTC()
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		scanEvents.WithLabelValues("dropped").Inc()
		return false
	}
	select {
	case t.queue <- in:
		scanQueueDepth.Inc()
		return true
	default:
		scanEvents.WithLabelValues("dropped").Inc()
		log.Warn().Str("short_link_id", in.ShortLinkID).Int("queue_cap", cap(t.queue)).Msg("scan queue full; dropping scan")
		return false
	}
}

// Record enriches and persists one scan synchronously. Failures are logged
// and absorbed.
func (t *Tracker) Record(ctx context.Context, in ScanInput) {
	ctx, span := otel.Tracer("services/Tracker").Start(ctx, "Record",
		trace.WithAttributes(attribute.String("link.id", in.ShortLinkID)),
	)
	defer span.End()

	if in.ClientIP == "" {
		in.ClientIP = UnknownClientIP
	}
	ev := &domain.ScanEvent{
		ShortLinkID: in.ShortLinkID,
		ClientIP:    in.ClientIP,
		UserAgent:   in.UserAgent,
		ObservedAt:  in.ObservedAt,
	}
	if t.Geo != nil {
		if info, ok := t.Geo.Lookup(ctx, in.ClientIP); ok && info != nil {
			ev.City = optional(info.City)
			ev.Region = optional(info.Region)
			ev.Country = optional(info.Country)
		}
	}

	if err := t.Repo.CreateScanEvent(ctx, t.DB, ev); err != nil {
		scanEvents.WithLabelValues("failed").Inc()
		span.RecordError(err)
		log.Error().Err(err).Str("short_link_id", in.ShortLinkID).Msg("failed to record scan event")
		return
	}
	scanEvents.WithLabelValues("recorded").Inc()
}

func (t *Tracker) loop() {
	defer t.wg.Done()
	for in := range t.queue {
		t.run(in)
	}
}

// run records one queued scan under its own deadline and panic boundary.
func (t *Tracker) run(in ScanInput) {
	scanQueueDepth.Dec()
	ctx, cancel := context.WithTimeout(context.Background(), t.jobTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			scanEvents.WithLabelValues("failed").Inc()
			log.Error().Interface("panic", r).Str("short_link_id", in.ShortLinkID).Msg("scan job panicked")
		}
	}()
	t.Record(ctx, in)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
