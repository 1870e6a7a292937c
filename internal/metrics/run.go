package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Resource outcomes.
const (
	ResultCreated   = "created"
	ResultFailed    = "failed"
	ResultSkipped   = "skipped"
	ResultExtracted = "extracted"
)

// Run collects counters for a single migration run. A nil *Run is valid
// and records nothing.
type Run struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	resources *prometheus.CounterVec
}

func NewRun() *Run {
	r := &Run{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workspace_migrate_api_requests_total",
			Help: "Control-plane API requests by tenant, method and status code",
		}, []string{"tenant", "method", "code"}),
		resources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workspace_migrate_resources_total",
			Help: "Resources handled by phase, kind and result",
		}, []string{"phase", "kind", "result"}),
	}
	r.registry.MustRegister(r.requests, r.resources)
	return r
}

// ObserveRequest counts one API call. status 0 means the request never got
// a response.
func (r *Run) ObserveRequest(tenant, method string, status int) {
	if r == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	r.requests.WithLabelValues(tenant, method, code).Inc()
}

func (r *Run) ObserveResource(phase, kind, result string) {
	if r == nil {
		return
	}
	r.resources.WithLabelValues(phase, kind, result).Inc()
}

// Requests returns the counter for one label set, for summaries and tests.
func (r *Run) Requests(tenant, method, code string) prometheus.Counter {
	return r.requests.WithLabelValues(tenant, method, code)
}

func (r *Run) Resources(phase, kind, result string) prometheus.Counter {
	return r.resources.WithLabelValues(phase, kind, result)
}

// WriteTextfile writes the collected metrics in the Prometheus text format,
// suitable for the node_exporter textfile collector.
func (r *Run) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
