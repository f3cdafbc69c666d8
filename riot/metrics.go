package riot

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var riotMetricsOnce sync.Once

var (
	riotRequestsTotal   *prometheus.CounterVec
	riotRequestDuration *prometheus.HistogramVec
)

func registerRiotCountVec(c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := prometheus.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		log.Printf("prometheus counter register failed: %v", err)
	}
	return c
}

func registerRiotHistogramVec(c *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := prometheus.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
		log.Printf("prometheus histogram register failed: %v", err)
	}
	return c
}

func initRiotMetrics() {
	riotMetricsOnce.Do(func() {
		riotRequestsTotal = registerRiotCountVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riftlink",
			Subsystem: "riot_client",
			Name:      "requests_total",
			Help:      "Total number of Riot API requests.",
		}, []string{"endpoint", "status", "result"}))

		riotRequestDuration = registerRiotHistogramVec(prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "riftlink",
			Subsystem: "riot_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of Riot API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "result"}))
	})
}

func recordRiotMetrics(endpoint string, statusCode int, err error, duration time.Duration) {
	if riotRequestsTotal == nil {
		return
	}
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	result := "success"
	if err != nil || statusCode < 200 || statusCode > 299 {
		result = "error"
	}
	riotRequestsTotal.WithLabelValues(endpoint, status, result).Inc()
	riotRequestDuration.WithLabelValues(endpoint, result).Observe(duration.Seconds())
}
