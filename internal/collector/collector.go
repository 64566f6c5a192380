// Package collector implements the global collector (spec component
// "Global Collector"): the dedicated worker that round-robin drains every
// registered producer ring, assembles per-trace state, applies the
// tail-sampling policy, re-parents dangling events/properties, converts
// monotonic timestamps to wall-clock, and dispatches materialized
// SpanRecord batches to the installed Reporter.
package collector

import (
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/fast/fastrace/internal/log"
	"github.com/fast/fastrace/internal/model"
	"github.com/fast/fastrace/internal/spscring"
)

// Config is the closed set of collector-tunable options (spec §6).
type Config struct {
	ReportInterval   time.Duration
	TailSampled      bool
	RingCapacity     int
	StaleGracePeriod time.Duration
	SharedShards     int
}

// DefaultConfig matches the spec's stated defaults (§6/§9).
func DefaultConfig() Config {
	return Config{
		ReportInterval:   10 * time.Millisecond,
		TailSampled:      false,
		RingCapacity:     spscring.MinCapacity,
		StaleGracePeriod: time.Second,
		SharedShards:     8,
	}
}

type entryPayload struct {
	entry   model.TokenEntry
	payload *model.Payload
}

// assembly is the in-flight per-trace state the collector accumulates
// between StartCollect and CommitCollect/DropCollect (spec §4.7). Touched
// only by the collector goroutine; no locking.
type assembly struct {
	traceID model.TraceID
	rootCtx model.SpanContext
	entries []entryPayload
}

type staleEntry struct {
	entries   []entryPayload
	expiresAt time.Time
}

type committedInfo struct {
	traceID   model.TraceID
	expiresAt time.Time
}

type droppedInfo struct {
	expiresAt time.Time
}

// Collector is the single global command-processing engine. The zero
// value is not usable; construct with New.
type Collector struct {
	cfg Config

	ringsMu sync.Mutex
	rings   map[uint64]*spscring.Ring[model.Command]
	nextRingID atomic.Uint64

	shared    []*spscring.Ring[model.Command]
	nextShard atomic.Uint64

	nextCollectID atomic.Uint32

	reporterMu sync.Mutex
	reporter   model.Reporter

	// collector-goroutine-only state, never touched elsewhere.
	active    map[model.CollectID]*assembly
	stale     map[model.CollectID]*staleEntry
	committed map[model.CollectID]*committedInfo
	dropped   map[model.CollectID]*droppedInfo
	drainBuf  []model.Command

	startOnce sync.Once
	inlineMu  sync.Mutex // serializes Flush's inline ticks when no worker runs
	stopCh    chan struct{}
	flushReq  chan chan struct{}
	eg        *errgroup.Group
}

// New constructs a Collector with the given config; it does not start the
// background worker (see Start), matching the static-disable requirement
// that no worker exists until instrumentation actually needs one.
func New(cfg Config) *Collector {
	c := &Collector{
		cfg:       cfg,
		rings:     make(map[uint64]*spscring.Ring[model.Command]),
		active:    make(map[model.CollectID]*assembly),
		stale:     make(map[model.CollectID]*staleEntry),
		committed: make(map[model.CollectID]*committedInfo),
		dropped:   make(map[model.CollectID]*droppedInfo),
		stopCh:    make(chan struct{}),
		flushReq:  make(chan chan struct{}),
	}
	shards := cfg.SharedShards
	if shards < 1 {
		shards = 1
	}
	for i := 0; i < shards; i++ {
		c.shared = append(c.shared, c.registerRing())
	}
	return c
}

// registerRing creates and registers a new ring, returning it.
func (c *Collector) registerRing() *spscring.Ring[model.Command] {
	r := spscring.New[model.Command](c.cfg.RingCapacity)
	id := c.nextRingID.Add(1)
	c.ringsMu.Lock()
	c.rings[id] = r
	c.ringsMu.Unlock()
	return r
}

// RegisterDedicatedRing allocates a ring for a single LocalSpanStack's
// exclusive use and returns it along with an id to later Unregister it
// (typically from a runtime finalizer once the stack becomes unreachable,
// standing in for the original design's thread-exit reclamation).
func (c *Collector) RegisterDedicatedRing() (*spscring.Ring[model.Command], uint64) {
	r := spscring.New[model.Command](c.cfg.RingCapacity)
	id := c.nextRingID.Add(1)
	c.ringsMu.Lock()
	c.rings[id] = r
	c.ringsMu.Unlock()
	return r, id
}

// UnregisterRing removes a dedicated ring from the drain set. Any
// commands still queued in it are lost, matching the "ring is reclaimed
// when thread exits" contract: by the time a LocalSpanStack is collected
// its guards have already drained and submitted everything relevant.
func (c *Collector) UnregisterRing(id uint64) {
	c.ringsMu.Lock()
	delete(c.rings, id)
	c.ringsMu.Unlock()
}

// SharedRing returns one of a small pool of rings shared by producers
// that have no dedicated LocalSpanStack ring (ctx-less cross-thread Span
// usage), selected round robin.
func (c *Collector) SharedRing() *spscring.Ring[model.Command] {
	i := c.nextShard.Add(1)
	return c.shared[i%uint64(len(c.shared))]
}

// NextCollectID allocates a fresh CollectID. Allocation is a plain atomic
// increment so the caller can stamp dependent commands before the
// collector goroutine ever sees StartCollect.
func (c *Collector) NextCollectID() model.CollectID {
	return model.CollectID(c.nextCollectID.Add(1))
}

// Push enqueues cmd onto ring, returning false (silently, per spec §4.2)
// if the ring is full.
func (c *Collector) Push(ring *spscring.Ring[model.Command], cmd model.Command) bool {
	ok := ring.Push(cmd)
	if !ok {
		log.Warn("fastrace: producer ring full, dropping command", "kind", cmd.Kind)
	}
	return ok
}

// SetReporter installs r as the process-wide reporter if none is
// installed yet. Subsequent calls are ignored (spec §4.9: "the collector
// installs at most one reporter for the process lifetime").
func (c *Collector) SetReporter(r model.Reporter) bool {
	c.reporterMu.Lock()
	defer c.reporterMu.Unlock()
	if c.reporter != nil {
		log.Warn("fastrace: reporter already installed, ignoring new install")
		return false
	}
	c.reporter = r
	return true
}

func (c *Collector) getReporter() model.Reporter {
	c.reporterMu.Lock()
	defer c.reporterMu.Unlock()
	return c.reporter
}

// Start launches the dedicated collector goroutine if it is not already
// running. Safe to call multiple times; only the first call has effect.
func (c *Collector) Start() {
	c.startOnce.Do(func() {
		c.eg = &errgroup.Group{}
		c.eg.Go(func() error {
			c.run()
			return nil
		})
	})
}

func (c *Collector) run() {
	ticker := time.NewTicker(c.cfg.ReportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			c.tick()
			return
		case ack := <-c.flushReq:
			c.tick()
			close(ack)
		case <-ticker.C:
			c.tick()
		}
	}
}

// Flush forces a synchronous drain of all rings and a final report
// invocation before returning (spec §4.9). If the worker was never
// started (instrumentation degrades to synchronous drain, spec §9 open
// question 3), Flush runs the tick inline instead of waiting on it.
func (c *Collector) Flush() {
	c.startOnce.Do(func() {
		// Start was never called: mark Start as having "happened" so a
		// later real Start is a no-op (matches the single-worker
		// contract). With no worker to ask, this and every later Flush
		// run the tick synchronously below.
	})
	if c.eg == nil {
		c.inlineMu.Lock()
		defer c.inlineMu.Unlock()
		c.tick()
		return
	}
	ack := make(chan struct{})
	select {
	case c.flushReq <- ack:
		<-ack
	case <-c.stopCh:
	}
}

// Shutdown stops the collector worker after a final flush.
func (c *Collector) Shutdown() {
	c.Flush()
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
	if c.eg != nil {
		_ = c.eg.Wait()
	}
	if r := c.getReporter(); r != nil {
		r.Shutdown()
	}
}

func (c *Collector) tick() {
	now := time.Now()
	c.drainBuf = c.drainBuf[:0]

	c.ringsMu.Lock()
	rings := make([]*spscring.Ring[model.Command], 0, len(c.rings))
	for _, r := range c.rings {
		rings = append(rings, r)
	}
	c.ringsMu.Unlock()

	for _, r := range rings {
		c.drainBuf = r.Drain(c.drainBuf)
	}

	var commits, drops []model.CollectID
	for _, cmd := range c.drainBuf {
		switch cmd.Kind {
		case model.CmdStartCollect:
			a := &assembly{traceID: cmd.TraceID, rootCtx: cmd.RootCtx}
			if se, ok := c.stale[cmd.CollectID]; ok {
				a.entries = append(a.entries, se.entries...)
				delete(c.stale, cmd.CollectID)
			}
			c.active[cmd.CollectID] = a
		case model.CmdSubmitSpans:
			c.applySubmit(cmd, now)
		case model.CmdCommitCollect:
			commits = append(commits, cmd.CollectID)
		case model.CmdDropCollect:
			drops = append(drops, cmd.CollectID)
		}
	}

	for _, cid := range drops {
		delete(c.active, cid)
		delete(c.stale, cid)
		c.dropped[cid] = &droppedInfo{expiresAt: now.Add(c.cfg.StaleGracePeriod)}
	}
	var toReport []model.SpanRecord
	for _, cid := range commits {
		a, ok := c.active[cid]
		if !ok {
			continue
		}
		delete(c.active, cid)
		delete(c.stale, cid)
		toReport = append(toReport, materialize(a.traceID, a.entries)...)
		c.committed[cid] = &committedInfo{traceID: a.traceID, expiresAt: now.Add(c.cfg.StaleGracePeriod)}
	}
	if len(toReport) > 0 {
		c.report(toReport)
	}

	c.expireStale(now)
}

func (c *Collector) applySubmit(cmd model.Command, now time.Time) {
	if a, ok := c.active[cmd.CollectID]; ok {
		a.entries = append(a.entries, entryPayload{cmd.Entry, cmd.Payload})
		return
	}
	if ci, ok := c.committed[cmd.CollectID]; ok {
		// Late arrival after commit. Resolution of spec's Open Question 1:
		// emit a supplementary record for the late span rather than
		// dropping it, since the data is otherwise silently lost forever.
		recs := materialize(ci.traceID, []entryPayload{{cmd.Entry, cmd.Payload}})
		if len(recs) > 0 {
			c.report(recs)
		}
		ci.expiresAt = now.Add(c.cfg.StaleGracePeriod)
		return
	}
	if _, ok := c.dropped[cmd.CollectID]; ok {
		return // trace was canceled; discard silently
	}
	se := c.stale[cmd.CollectID]
	if se == nil {
		se = &staleEntry{}
		c.stale[cmd.CollectID] = se
	}
	se.entries = append(se.entries, entryPayload{cmd.Entry, cmd.Payload})
	se.expiresAt = now.Add(c.cfg.StaleGracePeriod)
}

func (c *Collector) expireStale(now time.Time) {
	for cid, se := range c.stale {
		if now.After(se.expiresAt) {
			delete(c.stale, cid)
		}
	}
	for cid, ci := range c.committed {
		if now.After(ci.expiresAt) {
			delete(c.committed, cid)
		}
	}
	for cid, di := range c.dropped {
		if now.After(di.expiresAt) {
			delete(c.dropped, cid)
		}
	}
}

func (c *Collector) report(records []model.SpanRecord) {
	r := c.getReporter()
	if r == nil {
		return
	}
	r.Report(records)
}
