// Package fastrace is the in-process core of a high-performance
// distributed tracing library: span creation and buffering, trace
// assembly, tail sampling, and dispatch to a pluggable Reporter. It does
// not ship a network exporter — bring your own Reporter implementation,
// or use fastracetest.Reporter in tests.
//
// Build with the fastrace_disable tag to compile every operation down to
// a zero-cost no-op, with no collector, rings, or background goroutine.
package fastrace
