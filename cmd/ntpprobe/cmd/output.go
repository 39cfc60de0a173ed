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

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/uptimecheck/ntpprobe/ntp/probe"
	"github.com/uptimecheck/ntpprobe/ntp/probe/stats"
)

func statusString(r *probe.Result) string {
	if r.Up() {
		return color.GreenString("[ UP ]")
	}
	return color.RedString("[DOWN]")
}

func printTable(out io.Writer, results []*probe.Result, report stats.Report) error {
	table := tablewriter.NewTable(out, tablewriter.WithRowMaxWidth(60))
	table.Header("status", "target", "stratum", "rtt", "server time", "message")
	for _, r := range results {
		val := []string{statusString(r), r.Target}
		if r.Reply != nil {
			val = append(val, fmt.Sprintf("%d", r.Reply.Stratum))
		} else {
			val = append(val, "")
		}
		if r.Up() {
			val = append(val, r.Latency.Round(time.Microsecond).String())
		} else {
			val = append(val, "")
		}
		if r.Reply != nil {
			val = append(val, r.Reply.ServerTime.Format(time.RFC3339))
		} else {
			val = append(val, "")
		}
		val = append(val, r.Message)
		if err := table.Append(val); err != nil {
			return fmt.Errorf("adding %s to the table: %w", r.Target, err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("rendering table: %w", err)
	}
	_, err := fmt.Fprintln(out, summaryLine(report))
	return err
}

func summaryLine(r stats.Report) string {
	line := fmt.Sprintf("%d/%d targets up", r.Up, r.Total)
	if r.Up > 0 {
		line += fmt.Sprintf(", rtt min/avg/max/stddev = %v/%v/%v/%v",
			r.RTTMin.Round(time.Microsecond),
			r.RTTMean.Round(time.Microsecond),
			r.RTTMax.Round(time.Microsecond),
			r.RTTStddev.Round(time.Microsecond),
		)
	}
	if r.Down > 0 {
		failures := make([]string, 0, len(r.Failures))
		for _, k := range r.FailureKinds() {
			failures = append(failures, fmt.Sprintf("%s: %d", k, r.Failures[k]))
		}
		line += fmt.Sprintf(", %s", color.RedString("down (%s)", strings.Join(failures, ", ")))
	}
	return line
}

type jsonOutput struct {
	Results []*probe.Result `json:"results"`
	Summary stats.Report    `json:"summary"`
}

func printJSON(out io.Writer, results []*probe.Result, report stats.Report) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonOutput{Results: results, Summary: report})
}
