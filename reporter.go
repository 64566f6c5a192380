//go:build !fastrace_disable

package fastrace

import (
	"sync"

	"github.com/fast/fastrace/internal/collector"
	"github.com/fast/fastrace/internal/log"
)

var (
	globalMu        sync.Mutex
	globalCollector *collector.Collector
	globalSettings  settings
)

func defaultSettings() settings {
	d := collector.DefaultConfig()
	return settings{
		reportInterval:   d.ReportInterval,
		tailSampled:      d.TailSampled,
		ringCapacity:     d.RingCapacity,
		staleGracePeriod: d.StaleGracePeriod,
		sharedShards:     d.SharedShards,
		stackDepth:       4096,
		queueCapacity:    10240,
	}
}

// Init applies opts to the process-wide collector configuration. It must
// be called, if at all, before the first span or reporter is created;
// later calls are ignored. Calling Init is optional — omitting it runs
// with the documented defaults.
func Init(opts ...Option) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCollector != nil {
		log.Warn("fastrace: Init called after the collector was already in use, ignoring")
		return
	}
	s := defaultSettings()
	for _, o := range opts {
		o(&s)
	}
	globalSettings = s
	globalCollector = collector.New(toCollectorConfig(s))
}

func toCollectorConfig(s settings) collector.Config {
	return collector.Config{
		ReportInterval:   s.reportInterval,
		TailSampled:      s.tailSampled,
		RingCapacity:     s.ringCapacity,
		StaleGracePeriod: s.staleGracePeriod,
		SharedShards:     s.sharedShards,
	}
}

// theCollector returns the process-wide collector, constructing it from
// defaults on first use if Init was never called.
func theCollector() *collector.Collector {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCollector == nil {
		globalSettings = defaultSettings()
		globalCollector = collector.New(toCollectorConfig(globalSettings))
	}
	return globalCollector
}

// stackDepth returns the configured bound on nested local-parent scopes
// per LocalSpanStack (spec §3/§4.3).
func stackDepth() int {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalSettings.stackDepth == 0 {
		return 4096
	}
	return globalSettings.stackDepth
}

// queueCapacity returns the configured bound on RawSpan entries per
// SpanLine (spec §3/§4.3).
func queueCapacity() int {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalSettings.queueCapacity == 0 {
		return 10240
	}
	return globalSettings.queueCapacity
}

// SetReporter installs r as the process-wide reporter and starts the
// collector's background worker. Only the first call takes effect (spec
// §4.9); later calls are ignored and logged. If Flush or Shutdown already
// ran on this collector before any worker was started, no worker is
// started here either, and records reach r only through later Flush calls.
func SetReporter(r Reporter) {
	c := theCollector()
	if c.SetReporter(r) {
		c.Start()
	}
}

// Flush forces a synchronous drain of every producer ring and a final
// reporter dispatch before returning (spec §4.9/§6). Safe to call even if
// no reporter was ever installed.
func Flush() {
	theCollector().Flush()
}

// Shutdown flushes and stops the collector worker, then shuts down the
// installed reporter, if any. Intended for process exit / test teardown.
func Shutdown() {
	theCollector().Shutdown()
}
