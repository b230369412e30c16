package main

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bitbucket.org/Davydov/gohmc/hmc"
)

var (
	iterationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gohmc_iterations_total",
		Help: "Number of completed iterations.",
	}, []string{"chain", "warmup"})
	divergencesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gohmc_divergences_total",
		Help: "Number of divergent transitions.",
	}, []string{"chain", "warmup"})
	stepSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gohmc_step_size",
		Help: "Current leapfrog step size.",
	}, []string{"chain"})
	acceptance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gohmc_acceptance_probability",
		Help: "Acceptance probability of the last transition.",
	}, []string{"chain"})
	logDensity = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gohmc_log_density",
		Help: "Log density at the current position.",
	}, []string{"chain"})
)

// observe updates the metrics of chain k.
func observe(k int, d *hmc.Draw) {
	chain := strconv.Itoa(k)
	warmup := strconv.FormatBool(d.Warmup)
	iterationsTotal.WithLabelValues(chain, warmup).Inc()
	if d.Stats.Divergent {
		divergencesTotal.WithLabelValues(chain, warmup).Inc()
	}
	stepSize.WithLabelValues(chain).Set(d.Stats.StepSize)
	acceptance.WithLabelValues(chain).Set(d.Stats.AcceptanceProbability)
	logDensity.WithLabelValues(chain).Set(d.LogP)
}

// serveMetrics exports the metrics over HTTP in the background.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Infof("Serving metrics on %s/metrics", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("Metrics server failed:", err)
		}
	}()
}
