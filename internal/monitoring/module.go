// Package monitoring owns the service's Prometheus registry, the in-process
// summary behind /api/monitoring/summary and the health probe manager.
//
// Instrumentation helpers record into the module installed with SetModule and
// are no-ops until one is installed.
package monitoring

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "swdash"

type moduleOptions struct {
	namespace      string
	runtimeMetrics bool
	handlerMaxReqs int
}

// Option configures NewModule.
type Option func(*moduleOptions)

// WithNamespace overrides the metric name prefix.
func WithNamespace(namespace string) Option {
	return func(o *moduleOptions) {
		if namespace != "" {
			o.namespace = namespace
		}
	}
}

// WithoutRuntimeMetrics skips the Go runtime and process collectors. Tests use
// it to keep scrapes small.
func WithoutRuntimeMetrics() Option {
	return func(o *moduleOptions) {
		o.runtimeMetrics = false
	}
}

// Module bundles a private registry with the service collectors.
type Module struct {
	registry *prometheus.Registry
	metrics  *serviceCollectors
	stats    *statStore
	health   *HealthManager
	maxReqs  int
}

// NewModule builds a Module with its own registry.
func NewModule(opts ...Option) (*Module, error) {
	o := moduleOptions{namespace: defaultNamespace, runtimeMetrics: true, handlerMaxReqs: 4}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	registry := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{}
	if o.runtimeMetrics {
		toRegister = append(toRegister,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewBuildInfoCollector(),
		)
	}

	metrics := newServiceCollectors(o.namespace)
	toRegister = append(toRegister, metrics.all()...)
	for _, c := range toRegister {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Module{
		registry: registry,
		metrics:  metrics,
		stats:    newStatStore(),
		health:   NewHealthManager(),
		maxReqs:  o.handlerMaxReqs,
	}, nil
}

func (m *Module) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format. A nil
// module answers 503.
func (m *Module) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry:            m.registry,
		MaxRequestsInFlight: m.maxReqs,
	})
}

func (m *Module) Health() *HealthManager {
	if m == nil {
		return nil
	}
	return m.health
}

var installed atomic.Pointer[Module]

// SetModule installs module for the package-level helpers. nil is ignored.
func SetModule(module *Module) {
	if module != nil {
		installed.Store(module)
	}
}

func current() *Module {
	return installed.Load()
}
