package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus implements Collector with Prometheus metrics.
type Prometheus struct {
	deployments        *prometheus.CounterVec
	deploymentDuration prometheus.Histogram
	filesCopied        prometheus.Counter
	filesFailed        prometheus.Counter
	trashFailures      prometheus.Counter

	stateTransitions *prometheus.CounterVec
	startsRejected   *prometheus.CounterVec
	exits            *prometheus.CounterVec
	runDuration      prometheus.Histogram

	messages         *prometheus.CounterVec
	decodeFailures   *prometheus.CounterVec
	listenerFailures *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewPrometheus creates a collector with metrics under namespace.
func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = "scripthost"
	}

	p := &Prometheus{registry: prometheus.NewRegistry()}

	p.deployments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deployments_total",
			Help:      "Total number of workspace synchronization passes",
		},
		[]string{"status"},
	)
	p.deploymentDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "deployment_duration_seconds",
			Help:      "Duration of workspace synchronization passes",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
	p.filesCopied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deployment_files_copied_total",
			Help:      "Total number of bundle files copied into the workspace",
		},
	)
	p.filesFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deployment_files_failed_total",
			Help:      "Total number of bundle files that could not be copied",
		},
	)
	p.trashFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trash_sweep_failures_total",
			Help:      "Total number of trash entries that could not be removed",
		},
	)

	p.stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runtime_state_transitions_total",
			Help:      "Total number of runtime state transitions",
		},
		[]string{"from_state", "to_state"},
	)
	p.startsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runtime_starts_rejected_total",
			Help:      "Total number of rejected runtime starts",
		},
		[]string{"reason"},
	)
	p.exits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runtime_exits_total",
			Help:      "Total number of runtime exits by exit code",
		},
		[]string{"code"},
	)
	p.runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "runtime_run_duration_seconds",
			Help:      "Wall time between runtime start and exit",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		},
	)

	p.messages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_messages_total",
			Help:      "Total number of messages relayed across the bridge",
		},
		[]string{"channel", "direction"},
	)
	p.decodeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_decode_failures_total",
			Help:      "Total number of malformed inbound envelopes",
		},
		[]string{"channel"},
	)
	p.listenerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_listener_failures_total",
			Help:      "Total number of listeners that failed during dispatch",
		},
		[]string{"topic"},
	)

	p.registry.MustRegister(
		p.deployments,
		p.deploymentDuration,
		p.filesCopied,
		p.filesFailed,
		p.trashFailures,
		p.stateTransitions,
		p.startsRejected,
		p.exits,
		p.runDuration,
		p.messages,
		p.decodeFailures,
		p.listenerFailures,
	)

	return p
}

// Registry returns the private registry backing this collector.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the collected metrics in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) DeploymentCompleted(copied, failed int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.deployments.WithLabelValues(status).Inc()
	p.deploymentDuration.Observe(duration.Seconds())
	p.filesCopied.Add(float64(copied))
	p.filesFailed.Add(float64(failed))
}

func (p *Prometheus) TrashSwept(failures int) {
	p.trashFailures.Add(float64(failures))
}

func (p *Prometheus) StateTransition(from, to string) {
	p.stateTransitions.WithLabelValues(from, to).Inc()
}

func (p *Prometheus) StartRejected(reason string) {
	p.startsRejected.WithLabelValues(reason).Inc()
}

func (p *Prometheus) RuntimeExited(code int, duration time.Duration) {
	p.exits.WithLabelValues(strconv.Itoa(code)).Inc()
	p.runDuration.Observe(duration.Seconds())
}

func (p *Prometheus) MessageRelayed(channel, direction string) {
	p.messages.WithLabelValues(channel, direction).Inc()
}

func (p *Prometheus) DecodeFailure(channel string) {
	p.decodeFailures.WithLabelValues(channel).Inc()
}

func (p *Prometheus) ListenerFailure(topic string) {
	p.listenerFailures.WithLabelValues(topic).Inc()
}
