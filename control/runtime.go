// control/runtime.go
//
// Runtime composes ConfigStore, MetricsRegistry, and DebugProbes into the
// api.Control facade that a Proactor attaches for its control plane.

package control

import "github.com/kestrelnet/proactor/api"

// Runtime implements api.Control by composing the three registries.
type Runtime struct {
	Config  *ConfigStore
	Metrics *MetricsRegistry
	Debug   *DebugProbes
}

// NewRuntime wires up a fresh, empty control plane.
func NewRuntime() *Runtime {
	return &Runtime{
		Config:  NewConfigStore(),
		Metrics: NewMetricsRegistry(),
		Debug:   NewDebugProbes(),
	}
}

var _ api.Control = (*Runtime)(nil)

func (r *Runtime) GetConfig() map[string]any { return r.Config.Snapshot() }

func (r *Runtime) SetConfig(cfg map[string]any) { r.Config.Merge(cfg) }

func (r *Runtime) Stats() map[string]any { return r.Metrics.Snapshot() }

func (r *Runtime) OnReload(fn func()) { r.Config.OnReload(fn) }

func (r *Runtime) RegisterDebugProbe(name string, fn func() any) { r.Debug.Register(name, fn) }

func (r *Runtime) DumpState() map[string]any { return r.Debug.Dump() }
