package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	UpdatesTotal  prometheus.Counter
	EnqueuedJobs  prometheus.Counter
	ProcessedJobs prometheus.Counter
	FailedJobs    prometheus.Counter

	ProviderCalls *prometheus.CounterVec
	TokensUsed    *prometheus.CounterVec
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = &Metrics{
			UpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nerdbot",
				Name:      "telegram_updates_total",
				Help:      "Total telegram updates received",
			}),
			EnqueuedJobs: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nerdbot",
				Name:      "queue_enqueued_total",
				Help:      "Total ask jobs enqueued to redis stream",
			}),
			ProcessedJobs: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nerdbot",
				Name:      "queue_processed_total",
				Help:      "Total ask jobs successfully processed",
			}),
			FailedJobs: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nerdbot",
				Name:      "queue_failed_total",
				Help:      "Total ask jobs failed during processing",
			}),
			ProviderCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nerdbot",
				Name:      "provider_calls_total",
				Help:      "Total AI provider calls by provider and outcome",
			}, []string{"provider", "outcome"}),
			TokensUsed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nerdbot",
				Name:      "provider_tokens_total",
				Help:      "Total backend-reported tokens consumed by provider",
			}, []string{"provider"}),
		}
		prometheus.MustRegister(
			global.UpdatesTotal,
			global.EnqueuedJobs,
			global.ProcessedJobs,
			global.FailedJobs,
			global.ProviderCalls,
			global.TokensUsed,
		)
	})
	return global
}
