package main

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/softtagz-sys/medikits-flowchart/internal/app"
	"github.com/softtagz-sys/medikits-flowchart/internal/traversal"
)

type benchResult struct {
	latency time.Duration
	outcome traversal.EndReason
	err     error
}

func newBenchCmd(c *cli) *cobra.Command {
	var (
		sessions int
		workers  int
		choose   string
		maxP90   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "bench FILE",
		Short: "Run many concurrent scripted walks and report latency",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			if sessions <= 0 || workers <= 0 {
				return fmt.Errorf("--sessions and --workers must be > 0")
			}
			actions, err := app.ParseActions(choose)
			if err != nil {
				return err
			}
			svc, err := c.service()
			if err != nil {
				return err
			}
			data, f, err := c.read(cmd, args[0])
			if err != nil {
				return err
			}

			jobs := make(chan struct{}, workers)
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				results = make([]benchResult, 0, sessions)
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for range jobs {
						start := time.Now()
						r := benchResult{}
						g, err := svc.Load(data, f)
						if err == nil {
							var report traversal.Report
							report, err = svc.Walk(g, actions, nil)
							r.outcome = report.Outcome
						}
						r.latency = time.Since(start)
						r.err = err
						mu.Lock()
						results = append(results, r)
						mu.Unlock()
					}
				}()
			}

			began := time.Now()
			for i := 0; i < sessions; i++ {
				jobs <- struct{}{}
			}
			close(jobs)
			wg.Wait()
			elapsed := time.Since(began)

			return writeBench(cmd.OutOrStdout(), results, elapsed, c, maxP90)
		}),
	}
	cmd.Flags().IntVar(&sessions, "sessions", 1000, "number of walks to run")
	cmd.Flags().IntVar(&workers, "workers", 8, "number of concurrent workers")
	cmd.Flags().StringVar(&choose, "choose", "", "actions applied by every walk, as for walk")
	cmd.Flags().DurationVar(&maxP90, "max-p90", 0, "fail when the P90 latency exceeds this (0 disables)")
	return cmd
}

func writeBench(w io.Writer, results []benchResult, elapsed time.Duration, c *cli, maxP90 time.Duration) error {
	latencies := make([]time.Duration, 0, len(results))
	outcomes := map[traversal.EndReason]int{}
	errs := 0
	var firstErr error
	for _, r := range results {
		latencies = append(latencies, r.latency)
		if r.err != nil {
			errs++
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		outcomes[r.outcome]++
	}
	if len(latencies) == 0 {
		return fmt.Errorf("no walks executed")
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	p90 := percentile(latencies, 90)

	fmt.Fprintf(w, "Bench finished\n")
	fmt.Fprintf(w, "- sessions: %d\n", len(latencies))
	fmt.Fprintf(w, "- errors: %d\n", errs)
	fmt.Fprintf(w, "- walks_per_sec: %.2f\n", float64(len(latencies))/elapsed.Seconds())
	reasons := make([]string, 0, len(outcomes))
	for r := range outcomes {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		label := r
		if label == "" {
			label = "in-progress"
		}
		fmt.Fprintf(w, "- outcome_%s: %d\n", label, outcomes[traversal.EndReason(r)])
	}
	if c.cache != nil {
		st := c.cache.Stats()
		fmt.Fprintf(w, "- cache_hits: %d\n", st.Hits)
		fmt.Fprintf(w, "- cache_misses: %d\n", st.Misses)
	}
	fmt.Fprintf(w, "- avg_ms: %.3f\n", ms(average(latencies)))
	fmt.Fprintf(w, "- p50_ms: %.3f\n", ms(percentile(latencies, 50)))
	fmt.Fprintf(w, "- p90_ms: %.3f\n", ms(p90))
	fmt.Fprintf(w, "- p99_ms: %.3f\n", ms(percentile(latencies, 99)))

	if errs > 0 {
		return fmt.Errorf("%d of %d walks failed, first: %w", errs, len(latencies), firstErr)
	}
	if maxP90 > 0 && p90 > maxP90 {
		return fmt.Errorf("p90 %s exceeds %s", p90, maxP90)
	}
	return nil
}

func percentile(items []time.Duration, p int) time.Duration {
	if len(items) == 0 {
		return 0
	}
	idx := (len(items) - 1) * p / 100
	return items[idx]
}

func average(items []time.Duration) time.Duration {
	if len(items) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range items {
		total += d
	}
	return total / time.Duration(len(items))
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
