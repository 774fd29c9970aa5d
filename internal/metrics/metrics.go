// Package metrics holds Prometheus counters for pipeline runs and the
// subscription endpoints.
package metrics

import (
	"context"
	"time"

	"github.com/lemara98/post-automation/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "presswire"

// Run is the metric set for one pipeline invocation. Each run gets its own
// registry so a push carries only that run's values.
type Run struct {
	reg *prometheus.Registry

	ArticlesFound     prometheus.Counter
	ArticlesNew       prometheus.Counter
	ArticlesProcessed prometheus.Counter
	ArticlesFailed    prometheus.Counter
	NewsletterSent    prometheus.Counter
	NewsletterFailed  prometheus.Counter

	duration    prometheus.Gauge
	lastSuccess prometheus.Gauge
	started     time.Time
}

func NewRun() *Run {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}
	return &Run{
		reg:               reg,
		ArticlesFound:     counter("articles_found_total", "Articles returned by the feed fetcher"),
		ArticlesNew:       counter("articles_new_total", "Fetched articles not yet in the ledger"),
		ArticlesProcessed: counter("articles_processed_total", "Articles generated, published and ledgered"),
		ArticlesFailed:    counter("articles_failed_total", "Articles skipped after a failed step"),
		NewsletterSent:    counter("newsletter_sent_total", "Newsletter emails delivered"),
		NewsletterFailed:  counter("newsletter_failed_total", "Newsletter emails that failed"),
		duration: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_last_success_timestamp_seconds",
			Help:      "Unix time the last successful run finished",
		}),
		started: time.Now(),
	}
}

func (r *Run) Registry() *prometheus.Registry { return r.reg }

// Finish records the run duration and, when err is nil, the success time.
func (r *Run) Finish(err error) {
	now := time.Now()
	r.duration.Set(now.Sub(r.started).Seconds())
	if err == nil {
		r.lastSuccess.Set(float64(now.Unix()))
	}
}

// Push sends the run's metrics to a Pushgateway. An empty url is a no-op
// and a failed push is only logged.
func (r *Run) Push(ctx context.Context, url, job, pipeline string) {
	if url == "" {
		return
	}
	err := push.New(url, job).
		Gatherer(r.reg).
		Grouping("pipeline", pipeline).
		PushContext(ctx)
	if err != nil {
		logger.Warn("metrics push failed", "url", url, "job", job, "error", err)
		return
	}
	logger.Debug("metrics pushed", "url", url, "job", job, "pipeline", pipeline)
}

// Web counts subscription endpoint outcomes.
type Web struct {
	Events *prometheus.CounterVec
}

func NewWeb(reg prometheus.Registerer) *Web {
	return &Web{
		Events: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_events_total",
			Help:      "Subscription endpoint calls by event and outcome",
		}, []string{"event", "outcome"}),
	}
}

func (w *Web) Record(event, outcome string) {
	if w == nil {
		return
	}
	w.Events.WithLabelValues(event, outcome).Inc()
}
