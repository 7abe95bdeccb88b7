package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for tool dispatch and workflows.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ToolCalls     *prometheus.CounterVec
	ToolDuration  *prometheus.HistogramVec
	WorkflowSteps *prometheus.CounterVec
	Workflows     *prometheus.CounterVec
	FeedItems     *prometheus.CounterVec
	PublishErrors prometheus.Counter
}

// NewMetrics registers every collector on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cyberguard_tool_calls_total",
			Help: "Total number of tool invocations by agent, tool and outcome",
		}, []string{"agent", "tool", "outcome"}),
		ToolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cyberguard_tool_duration_seconds",
			Help:    "Tool invocation latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"agent", "tool"}),
		WorkflowSteps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cyberguard_workflow_steps_total",
			Help: "Total number of coordinator workflow steps by workflow, agent and status",
		}, []string{"workflow", "agent", "status"}),
		Workflows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cyberguard_workflows_total",
			Help: "Total number of coordinator runs by workflow and completion",
		}, []string{"workflow", "completed"}),
		FeedItems: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cyberguard_feed_items_total",
			Help: "Total number of threat intel items fetched per feed",
		}, []string{"source"}),
		PublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "cyberguard_nats_publish_errors_total",
			Help: "Total number of NATS publish errors",
		}),
	}
}

// ObserveTool records one tool invocation.
func (m *Metrics) ObserveTool(agent, tool string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.ToolCalls.WithLabelValues(agent, tool, outcome).Inc()
	m.ToolDuration.WithLabelValues(agent, tool).Observe(d.Seconds())
}

// ObserveStep records one coordinator step.
func (m *Metrics) ObserveStep(workflow, agent, status string) {
	if m == nil {
		return
	}
	m.WorkflowSteps.WithLabelValues(workflow, agent, status).Inc()
}

// ObserveWorkflow records a finished coordinator run.
func (m *Metrics) ObserveWorkflow(workflow string, completed bool) {
	if m == nil {
		return
	}
	label := "false"
	if completed {
		label = "true"
	}
	m.Workflows.WithLabelValues(workflow, label).Inc()
}

// AddFeedItems counts items fetched from a feed.
func (m *Metrics) AddFeedItems(source string, n int) {
	if m == nil {
		return
	}
	m.FeedItems.WithLabelValues(source).Add(float64(n))
}

// IncrementPublishErrors counts a failed NATS publish.
func (m *Metrics) IncrementPublishErrors() {
	if m == nil {
		return
	}
	m.PublishErrors.Inc()
}
