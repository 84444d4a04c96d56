package strategy

import (
	"sort"
	"sync"

	"github.com/stratforge/backtest/pkg/errors"
)

// Builder constructs a factory from free-form parameters, validating them up
// front so misconfiguration surfaces before any run starts.
type Builder func(params map[string]float64) (Factory, error)

// Registry maps strategy names to builders. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds a builder under the given name, replacing any previous one.
func (r *Registry) Register(name string, builder Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.builders[name] = builder
}

// Build constructs a factory for the named strategy.
func (r *Registry) Build(name string, params map[string]float64) (Factory, error) {
	r.mu.RLock()
	builder, ok := r.builders[name]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Newf(errors.ErrCodeStrategyNotFound, "unknown strategy %q", name)
	}

	return builder(params)
}

// Names returns the registered strategy names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// DefaultRegistry returns a registry with all built-in strategies.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NameBuyAndHold, buildBuyAndHold)
	r.Register(NameSMACrossover, buildSMACrossover)
	r.Register(NameRSIReversion, buildRSIReversion)

	return r
}

// intParam reads a positive integer parameter, falling back to a default when
// the key is absent.
func intParam(params map[string]float64, key string, fallback int) (int, error) {
	raw, ok := params[key]
	if !ok {
		return fallback, nil
	}

	value := int(raw)
	if float64(value) != raw || value <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter,
			"parameter %q must be a positive integer, got %v", key, raw)
	}

	return value, nil
}

func floatParam(params map[string]float64, key string, fallback float64) float64 {
	if raw, ok := params[key]; ok {
		return raw
	}

	return fallback
}
