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

package probe

import (
	"context"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// CheckAll checks targets in parallel, at most concurrency at a time (unlimited if <= 0).
// Every target gets its own socket. Results are returned in the order of targets.
func (p *Prober) CheckAll(ctx context.Context, targets []Target, concurrency int) []*Result {
	results := make([]*Result, len(targets))
	var eg errgroup.Group
	if concurrency > 0 {
		eg.SetLimit(concurrency)
	}
	for i, t := range targets {
		t := t
		res := &Result{}
		results[i] = res
		eg.Go(func() error {
			if err := p.Check(ctx, t, res); err != nil {
				log.Infof("%s is down: %v", t, err)
			}
			// a down target is a result, not a reason to stop the others
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

// CountUp returns number of results with target up
func CountUp(results []*Result) int {
	up := 0
	for _, r := range results {
		if r.Up() {
			up++
		}
	}
	return up
}
