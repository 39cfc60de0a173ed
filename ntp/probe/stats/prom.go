/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package stats collects results of NTP checks: Prometheus metrics and an in-memory summary of a batch.
*/
package stats

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/uptimecheck/ntpprobe/ntp/probe"
)

const namespace = "ntpprobe"

// rttBuckets cover loopback to intercontinental round trips, in seconds
var rttBuckets = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Prometheus exports check results as Prometheus metrics
type Prometheus struct {
	registry   *prometheus.Registry
	checks     *prometheus.CounterVec
	up         *prometheus.GaugeVec
	stratum    *prometheus.GaugeVec
	serverTime *prometheus.GaugeVec
	rtt        *prometheus.HistogramVec
}

// NewPrometheus creates metrics in a fresh registry
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Number of NTP checks by outcome",
		}, []string{"target", "result"}),
		up: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "up",
			Help:      "Whether the last check of the target passed",
		}, []string{"target"}),
		stratum: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stratum",
			Help:      "Stratum reported in the last reply",
		}, []string{"target"}),
		serverTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "server_time_seconds",
			Help:      "Transmit timestamp of the last reply as unix time",
		}, []string{"target"}),
		rtt: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rtt_seconds",
			Help:      "Round trip time of successful checks",
			Buckets:   rttBuckets,
		}, []string{"target"}),
	}
	p.registry.MustRegister(p.checks, p.up, p.stratum, p.serverTime, p.rtt)
	return p
}

// Observe implements probe.Stats
func (p *Prometheus) Observe(_ probe.Target, r *probe.Result) {
	p.checks.WithLabelValues(r.Target, r.Kind.String()).Inc()
	if r.Up() {
		p.up.WithLabelValues(r.Target).Set(1)
		p.rtt.WithLabelValues(r.Target).Observe(r.Latency.Seconds())
	} else {
		p.up.WithLabelValues(r.Target).Set(0)
	}
	if r.Reply != nil {
		p.stratum.WithLabelValues(r.Target).Set(float64(r.Reply.Stratum))
		p.serverTime.WithLabelValues(r.Target).Set(float64(r.Reply.ServerTime.Unix()))
	}
}

// WriteTextfile dumps metrics in the format of node_exporter textfile collector
func (p *Prometheus) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("writing metrics to %q: %w", path, err)
	}
	log.Debugf("metrics written to %s", path)
	return nil
}
