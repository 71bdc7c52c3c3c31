// Package control provides the proactor runtime's hot-reload configuration,
// live metrics, and debug introspection layer.
//
// Runtime composes a ConfigStore, a MetricsRegistry, and a DebugProbes
// registry into a single api.Control implementation that a Proactor or
// datagram.Socket can report through.
package control
