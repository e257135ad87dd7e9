package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pickroll"

// Message kinds used as label values.
const (
	KindPrivate = "private"
	KindPublic  = "public"
	KindComment = "comment"
)

// Metrics groups the counters exposed on /metrics.
type Metrics struct {
	GateCacheHits        prometheus.Counter
	GateStoreReads       prometheus.Counter
	ConversationsCreated prometheus.Counter
	MessagesSent         *prometheus.CounterVec
	Subscriptions        prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GateCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_cache_hits_total",
			Help:      "Conversation existence checks answered from the in-process cache.",
		}),
		GateStoreReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_store_reads_total",
			Help:      "Conversation existence checks that reached the document store.",
		}),
		ConversationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_created_total",
			Help:      "Private conversation records created.",
		}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages written, by kind.",
		}, []string{"kind"}),
		Subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_subscriptions",
			Help:      "Realtime subscriptions currently open.",
		}),
	}
	reg.MustRegister(m.GateCacheHits, m.GateStoreReads, m.ConversationsCreated, m.MessagesSent, m.Subscriptions)
	return m
}
