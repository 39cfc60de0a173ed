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
	"context"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/uptimecheck/ntpprobe/ntp/probe"
	"github.com/uptimecheck/ntpprobe/ntp/probe/stats"
)

var (
	checkConfigFlag      string
	checkPortFlag        int
	checkTimeoutFlag     time.Duration
	checkStratumFlag     int
	checkDSCPFlag        int
	checkConcurrencyFlag int
	checkJSONFlag        bool
	checkTextfileFlag    string
	checkNoColorFlag     bool
)

// flags which override config file values when set
var checkOverrideFlags = []string{"port", "timeout", "stratum", "dscp", "concurrency"}

func init() {
	RootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVarP(&checkConfigFlag, "config", "c", "", "path to the config with targets")
	checkCmd.Flags().IntVarP(&checkPortFlag, "port", "p", probe.DefaultPort, "NTP port of the targets")
	checkCmd.Flags().DurationVarP(&checkTimeoutFlag, "timeout", "t", probe.DefaultTimeout, "how long to wait for the reply")
	checkCmd.Flags().IntVarP(&checkStratumFlag, "stratum", "s", 0, "expected stratum of the targets. Any stratum is fine if not set")
	checkCmd.Flags().IntVarP(&checkDSCPFlag, "dscp", "d", 0, "DSCP of request packets")
	checkCmd.Flags().IntVarP(&checkConcurrencyFlag, "concurrency", "j", probe.DefaultConcurrency, "how many targets to check in parallel")
	checkCmd.Flags().BoolVar(&checkJSONFlag, "json", false, "print results as JSON")
	checkCmd.Flags().StringVar(&checkTextfileFlag, "textfile", "", "write Prometheus metrics to this file")
	checkCmd.Flags().BoolVar(&checkNoColorFlag, "no-color", false, "disable colored output")
}

type checkOptions struct {
	json     bool
	textfile string
}

// checkRun checks all targets from the config, prints the results and returns how many targets are down
func checkRun(ctx context.Context, out io.Writer, cfg *probe.Config, opts checkOptions) (int, error) {
	prom := stats.NewPrometheus()
	summary := stats.NewSummary()
	p := probe.New(stats.Multi(prom, summary))

	targets := cfg.Resolved()
	log.Debugf("checking %d targets, %d at a time", len(targets), cfg.Concurrency)
	results := p.CheckAll(ctx, targets, cfg.Concurrency)
	report := summary.Report()

	if opts.textfile != "" {
		if err := prom.WriteTextfile(opts.textfile); err != nil {
			return report.Down, err
		}
	}
	var err error
	if opts.json {
		err = printJSON(out, results, report)
	} else {
		err = printTable(out, results, report)
	}
	return report.Down, err
}

const checkDesc = "Send a single NTP request to every target and report whether it is up."

var checkCmd = &cobra.Command{
	Use:   "check [host...]",
	Short: checkDesc,
	Long: checkDesc + "\nTargets come from the arguments or from the config file. " +
		"Exit code is 1 if any of the targets is down.",
	Run: func(cmd *cobra.Command, args []string) {
		ConfigureVerbosity()

		if checkNoColorFlag || !term.IsTerminal(int(os.Stdout.Fd())) {
			color.NoColor = true
		}
		setFlags := map[string]bool{}
		for _, name := range checkOverrideFlags {
			setFlags[name] = cmd.Flags().Changed(name)
		}
		cfg, err := probe.PrepareConfig(
			checkConfigFlag,
			args,
			checkPortFlag,
			checkTimeoutFlag,
			checkStratumFlag,
			checkDSCPFlag,
			checkConcurrencyFlag,
			setFlags,
		)
		if err != nil {
			log.Fatal(err)
		}

		down, err := checkRun(cmd.Context(), os.Stdout, cfg, checkOptions{json: checkJSONFlag, textfile: checkTextfileFlag})
		if err != nil {
			log.Fatal(err)
		}
		if down > 0 {
			os.Exit(1)
		}
	},
}
