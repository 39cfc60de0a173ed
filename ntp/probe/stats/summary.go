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

package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/eclesh/welford"

	"github.com/uptimecheck/ntpprobe/ntp/probe"
)

// Summary aggregates results of a batch of checks
type Summary struct {
	sync.Mutex
	rtt      *welford.Stats
	total    int
	up       int
	min      time.Duration
	max      time.Duration
	failures map[probe.ErrorKind]int
}

// Report is a snapshot of Summary
type Report struct {
	Total     int            `json:"total"`
	Up        int            `json:"up"`
	Down      int            `json:"down"`
	Failures  map[string]int `json:"failures,omitempty"`
	RTTMin    time.Duration  `json:"rtt_min_ns"`
	RTTMax    time.Duration  `json:"rtt_max_ns"`
	RTTMean   time.Duration  `json:"rtt_mean_ns"`
	RTTStddev time.Duration  `json:"rtt_stddev_ns"`
}

// NewSummary returns empty Summary
func NewSummary() *Summary {
	return &Summary{
		rtt:      welford.New(),
		failures: map[probe.ErrorKind]int{},
	}
}

// Observe implements probe.Stats
func (s *Summary) Observe(_ probe.Target, r *probe.Result) {
	s.Lock()
	defer s.Unlock()
	s.total++
	if !r.Up() {
		s.failures[r.Kind]++
		return
	}
	if s.up == 0 || r.Latency < s.min {
		s.min = r.Latency
	}
	if r.Latency > s.max {
		s.max = r.Latency
	}
	s.up++
	s.rtt.Add(float64(r.Latency))
}

// Report returns current state of the summary. RTT figures only cover targets that are up.
func (s *Summary) Report() Report {
	s.Lock()
	defer s.Unlock()
	r := Report{
		Total:  s.total,
		Up:     s.up,
		Down:   s.total - s.up,
		RTTMin: s.min,
		RTTMax: s.max,
	}
	if s.up > 0 {
		r.RTTMean = time.Duration(s.rtt.Mean())
	}
	// sample stddev is undefined for a single value
	if s.up > 1 {
		r.RTTStddev = time.Duration(s.rtt.Stddev())
	}
	if len(s.failures) > 0 {
		r.Failures = make(map[string]int, len(s.failures))
		for k, n := range s.failures {
			r.Failures[k.String()] = n
		}
	}
	return r
}

// FailureKinds returns names of failure kinds seen, sorted
func (r Report) FailureKinds() []string {
	kinds := make([]string, 0, len(r.Failures))
	for k := range r.Failures {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

type multi []probe.Stats

// Multi fans every result out to all the given stats
func Multi(stats ...probe.Stats) probe.Stats {
	return multi(stats)
}

func (m multi) Observe(t probe.Target, r *probe.Result) {
	for _, s := range m {
		s.Observe(t, r)
	}
}
