// Package metrics exposes miner instrumentation to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cyberia-to/universal-hash/miner"
)

var hashesCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "uhash_hashes_total",
	Help: "Total digests computed by the miner",
})

var proofsCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "uhash_proofs_found_total",
	Help: "Proofs meeting difficulty",
})

var rotationsCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "uhash_seed_rotations_total",
	Help: "Seed rotations applied",
})

var hashrateGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "uhash_hashrate_hz",
	Help: "Rolling hashrate over the sample ring",
})

var errorsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "uhash_miner_errors_total",
	Help: "Transient miner errors by kind",
}, []string{"kind"})

func RecordHashes(n uint64) {
	hashesCounter.Add(float64(n))
}

func RecordHashrate(hz float64) {
	hashrateGauge.Set(hz)
}

func RecordError(kind string) {
	errorsCounter.WithLabelValues(kind).Inc()
}

// Sink routes miner events into the Prometheus collectors.
type Sink struct{}

func (Sink) Publish(ev miner.Event) {
	switch ev.Type {
	case miner.EventProofFound:
		proofsCounter.Inc()
	case miner.EventRotation:
		rotationsCounter.Inc()
	case miner.EventHashrate:
		hashrateGauge.Set(ev.Hashrate)
	case miner.EventError:
		errorsCounter.WithLabelValues("event").Inc()
	}
}

// Serve blocks serving /metrics on listen.
func Serve(listen string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}
