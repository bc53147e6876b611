// Package metrics provides the daemon's Prometheus metric registry.
//
// Metrics follow the naming convention:
//
//	agentd_<subsystem>_<metric_name>
//
// where the subsystem is the category (supervisor, health, pairing,
// cache, ssrf), e.g. agentd_supervisor_restarts_total.
//
// Example:
//
//	registry := metrics.DefaultRegistry()
//	registry.Supervisor().RestartsTotal.WithLabelValues("gateway").Inc()
//	registry.Health().ComponentStatus.WithLabelValues("channels").Set(1)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "agentd"

// Registry is the central registry for all daemon Prometheus metrics.
// Categories are lazily initialized on first access and registered
// against the default Prometheus registerer.
//
// Thread-safe: all Prometheus metrics are thread-safe by design.
// Use DefaultRegistry() for the process-wide singleton.
type Registry struct {
	namespace string

	supervisor     *SupervisorMetrics
	health         *HealthMetrics
	pairing        *PairingMetrics
	cache          *CacheMetrics
	ssrf           *SSRFMetrics

	supervisorOnce sync.Once
	healthOnce     sync.Once
	pairingOnce    sync.Once
	cacheOnce      sync.Once
	ssrfOnce       sync.Once
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the global singleton Registry.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = New(defaultNamespace)
	})
	return defaultRegistry
}

// New creates a Registry under namespace. Most callers should use
// DefaultRegistry() instead.
func New(namespace string) *Registry {
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &Registry{namespace: namespace}
}

// Namespace returns the configured Prometheus namespace.
func (r *Registry) Namespace() string {
	return r.namespace
}

// Supervisor returns the restart/backoff metrics for supervised
// components.
func (r *Registry) Supervisor() *SupervisorMetrics {
	r.supervisorOnce.Do(func() {
		r.supervisor = newSupervisorMetrics(r.namespace)
	})
	return r.supervisor
}

// Health returns the per-component status gauges.
func (r *Registry) Health() *HealthMetrics {
	r.healthOnce.Do(func() {
		r.health = newHealthMetrics(r.namespace)
	})
	return r.health
}

// Pairing returns the gateway pairing-attempt counters.
func (r *Registry) Pairing() *PairingMetrics {
	r.pairingOnce.Do(func() {
		r.pairing = newPairingMetrics(r.namespace)
	})
	return r.pairing
}

// Cache returns the reliable-caller response-cache counters.
func (r *Registry) Cache() *CacheMetrics {
	r.cacheOnce.Do(func() {
		r.cache = newCacheMetrics(r.namespace)
	})
	return r.cache
}

// SSRF returns the outbound-request rejection counters.
func (r *Registry) SSRF() *SSRFMetrics {
	r.ssrfOnce.Do(func() {
		r.ssrf = newSSRFMetrics(r.namespace)
	})
	return r.ssrf
}

// SupervisorMetrics tracks component restarts and backoff durations.
type SupervisorMetrics struct {
	RestartsTotal   *prometheus.CounterVec
	BackoffSeconds  *prometheus.HistogramVec
}

func newSupervisorMetrics(namespace string) *SupervisorMetrics {
	m := &SupervisorMetrics{
		RestartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "restarts_total",
			Help:      "Total number of component restarts performed by the supervisor.",
		}, []string{"component"}),
		BackoffSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "backoff_seconds",
			Help:      "Jittered backoff duration applied before each restart.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"component"}),
	}
	prometheus.MustRegister(m.RestartsTotal, m.BackoffSeconds)
	return m
}

// HealthMetrics exposes each supervised component's current status as
// a gauge: 1 for "ok", 0 otherwise.
type HealthMetrics struct {
	ComponentStatus *prometheus.GaugeVec
}

func newHealthMetrics(namespace string) *HealthMetrics {
	m := &HealthMetrics{
		ComponentStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "component_status",
			Help:      "1 if the component's last reported status was ok, 0 otherwise.",
		}, []string{"component"}),
	}
	prometheus.MustRegister(m.ComponentStatus)
	return m
}

// PairingMetrics tracks gateway pairing attempts.
type PairingMetrics struct {
	AttemptsTotal *prometheus.CounterVec
	LockoutsTotal prometheus.Counter
}

func newPairingMetrics(namespace string) *PairingMetrics {
	m := &PairingMetrics{
		AttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pairing",
			Name:      "attempts_total",
			Help:      "Total pairing attempts by outcome.",
		}, []string{"outcome"}),
		LockoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pairing",
			Name:      "lockouts_total",
			Help:      "Total number of times pairing entered brute-force lockout.",
		}),
	}
	prometheus.MustRegister(m.AttemptsTotal, m.LockoutsTotal)
	return m
}

// CacheMetrics tracks the reliable caller's response cache.
type CacheMetrics struct {
	HitsTotal   prometheus.Counter
	MissesTotal prometheus.Counter
}

func newCacheMetrics(namespace string) *CacheMetrics {
	m := &CacheMetrics{
		HitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total response-cache hits in the reliable caller.",
		}),
		MissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total response-cache misses in the reliable caller.",
		}),
	}
	prometheus.MustRegister(m.HitsTotal, m.MissesTotal)
	return m
}

// SSRFMetrics tracks outbound requests rejected by the SSRF guard.
type SSRFMetrics struct {
	RejectionsTotal *prometheus.CounterVec
}

func newSSRFMetrics(namespace string) *SSRFMetrics {
	m := &SSRFMetrics{
		RejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ssrf",
			Name:      "rejections_total",
			Help:      "Total outbound requests rejected by the SSRF guard, by reason.",
		}, []string{"reason"}),
	}
	prometheus.MustRegister(m.RejectionsTotal)
	return m
}
