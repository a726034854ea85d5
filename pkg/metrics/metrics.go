package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "plexai"

// Registry holds every collector this process exports on /metrics.
var Registry = prometheus.NewRegistry()

var (
	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Cache lookups by payload class and result.",
	}, []string{"payload", "result"})

	cacheDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "deleted_keys_total",
		Help:      "Keys removed by pattern deletes.",
	})

	conversationsEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "conversations",
		Name:      "evicted_total",
		Help:      "Conversations evicted by the per-user cap.",
	})

	llmCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "llm_calls_total",
		Help:      "Language model invocations by mode and outcome.",
	}, []string{"mode", "status"})

	toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "tool_calls_total",
		Help:      "Tool invocations requested by the model.",
	}, []string{"tool", "status"})

	turnDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "turn_duration_seconds",
		Help:      "Wall time of one chat turn.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
	}, []string{"mode"})

	streamEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "stream_events_total",
		Help:      "Events written to streaming clients by transport and type.",
	}, []string{"transport", "type"})

	turnIterations = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "agent",
		Name:      "turn_iterations",
		Help:      "Model invocations needed per turn.",
		Buckets:   []float64{1, 2, 3, 4, 5},
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		cacheLookups,
		cacheDeleted,
		conversationsEvicted,
		llmCalls,
		toolCalls,
		turnDuration,
		turnIterations,
		streamEvents,
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func CacheLookup(payload string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(payload, result).Inc()
}

func CacheDeleted(n int64) {
	cacheDeleted.Add(float64(n))
}

func ConversationsEvicted(n int) {
	conversationsEvicted.Add(float64(n))
}

func LLMCall(mode string, err error) {
	llmCalls.WithLabelValues(mode, status(err)).Inc()
}

func ToolCall(tool string, err error) {
	toolCalls.WithLabelValues(tool, status(err)).Inc()
}

func Turn(mode string, started time.Time, iterations int) {
	turnDuration.WithLabelValues(mode).Observe(time.Since(started).Seconds())
	turnIterations.Observe(float64(iterations))
}

func StreamEvent(transport, eventType string) {
	streamEvents.WithLabelValues(transport, eventType).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
