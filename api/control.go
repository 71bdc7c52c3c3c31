package api

// Control exposes configuration, live metrics, and debug introspection for
// the proactor runtime. control.Runtime implements this by composing a
// ConfigStore, a MetricsRegistry, and a DebugProbes registry.
type Control interface {
	// GetConfig returns a snapshot of all configuration settings.
	GetConfig() map[string]any

	// SetConfig atomically updates or merges configuration settings.
	SetConfig(cfg map[string]any)

	// Stats returns current aggregated runtime and performance metrics.
	Stats() map[string]any

	// OnReload registers a callback for hot-reload/config updates.
	OnReload(fn func())

	// RegisterDebugProbe dynamically registers a named debug probe function,
	// invoked during debug dumps.
	RegisterDebugProbe(name string, fn func() any)

	// DumpState returns the output of every registered debug probe.
	DumpState() map[string]any
}
