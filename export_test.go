//go:build !fastrace_disable

package fastrace

// resetGlobalCollectorForTest tears down the process-wide collector so
// each test gets its own reporter and ring set; SetReporter only ever
// honors the first install per collector instance.
func resetGlobalCollectorForTest() {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCollector != nil {
		globalCollector.Shutdown()
	}
	globalCollector = nil
	globalSettings = settings{}
}
