// Package runner hosts a load-test script: it builds one executor per
// scenario, hands VUs to the script's iteration function, aggregates the
// metrics and turns them into summary data for the script's summary handler.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/lokalise/nginx-loadtest/internal/config"
	lhttp "github.com/lokalise/nginx-loadtest/internal/http"
	"github.com/lokalise/nginx-loadtest/internal/runner/executor"
	"github.com/lokalise/nginx-loadtest/internal/runner/metrics"
	"github.com/lokalise/nginx-loadtest/internal/summary"
)

// Script is a load-test script.
type Script interface {
	// Options returns the scenarios and thresholds to run with.
	Options() *config.Options

	// Default runs one iteration on vu. It is called once per arrival.
	Default(ctx context.Context, vu *VU) error

	// HandleSummary turns the end-of-test data into outputs keyed by
	// destination: "stdout", "stderr" or a file path.
	HandleSummary(data *summary.Data) (map[string]string, error)
}

// Runner runs a Script.
//
// Example usage:
//
//	r, err := runner.New(script.New())
//	if err != nil {
//	    return err
//	}
//	result, err := r.Run(ctx)
//	...
//	err = r.HandleSummary(result, ".")
type Runner struct {
	script     Script
	options    *config.Options
	thresholds []metricThresholds

	metrics *metrics.Engine
	client  HTTPClient
	console *Console

	stdout io.Writer
	stderr io.Writer

	quiet            bool
	progressInterval time.Duration

	scenarios []*scenarioRun
	nextVUID  atomic.Int32

	mu      sync.Mutex
	running bool
}

// scenarioRun is one scenario with its executor.
type scenarioRun struct {
	name      string
	executor  executor.Executor
	scheduler *VUScheduler
}

// Option configures a Runner.
type Option func(*Runner)

// WithStdout sets where iteration logs and the "stdout" summary output go.
func WithStdout(w io.Writer) Option {
	return func(r *Runner) { r.stdout = w }
}

// WithStderr sets where progress and the "stderr" summary output go.
func WithStderr(w io.Writer) Option {
	return func(r *Runner) { r.stderr = w }
}

// WithQuiet disables the progress display.
func WithQuiet(quiet bool) Option {
	return func(r *Runner) { r.quiet = quiet }
}

// WithProgressInterval sets how often progress is printed.
func WithProgressInterval(d time.Duration) Option {
	return func(r *Runner) { r.progressInterval = d }
}

// WithHTTPClient replaces the HTTP client given to VUs.
func WithHTTPClient(c HTTPClient) Option {
	return func(r *Runner) { r.client = c }
}

// New validates the script's options and prepares one executor per scenario.
func New(script Script, opts ...Option) (*Runner, error) {
	if script == nil {
		return nil, fmt.Errorf("script is nil")
	}
	raw := script.Options()
	if raw == nil {
		return nil, fmt.Errorf("script returned no options")
	}

	options := raw.Clone()
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	config.ApplyDefaults(options)

	thresholds, err := parseThresholds(options.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}

	r := &Runner{
		script:           script,
		options:          options,
		thresholds:       thresholds,
		metrics:          metrics.NewEngine(),
		stdout:           os.Stdout,
		stderr:           os.Stderr,
		progressInterval: time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.console = NewConsole(r.stdout)
	if r.client == nil {
		r.client = lhttp.NewClient(
			lhttp.WithTimeout(options.Settings.Timeout.GetDuration(config.DefaultHTTPTimeout)),
			lhttp.WithMaxIdleConnsPerHost(options.Settings.MaxIdleConnsPerHost),
			lhttp.WithInsecureSkipVerify(options.Settings.InsecureSkipVerify),
			lhttp.WithRecorder(r.metrics),
		)
	}

	names := make([]string, 0, len(options.Scenarios))
	for name := range options.Scenarios {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sched := newVUScheduler(r.client, r.console, script.Default, &r.nextVUID)
		exec, err := executor.New(name, options.Scenarios[name], sched, r.metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create executor for scenario %s: %w", name, err)
		}
		r.scenarios = append(r.scenarios, &scenarioRun{name: name, executor: exec, scheduler: sched})
	}

	return r, nil
}

// Options returns the effective options, with defaults applied.
func (r *Runner) Options() *config.Options {
	return r.options.Clone()
}

// Result is the outcome of a run.
type Result struct {
	Data      *summary.Data
	Duration  time.Duration
	Scenarios map[string]executor.Stats
}

// Passed reports whether every threshold passed.
func (r *Result) Passed() bool {
	return r.Data == nil || r.Data.ThresholdsPassed()
}

// Run executes every scenario concurrently and returns the summary data.
//
// Cancelling ctx interrupts the run; the result still holds the data
// collected so far and ctx's error is returned with it.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil, fmt.Errorf("runner is already running")
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	start := time.Now()

	var progress *Progress
	stopProgress := func() {}
	if !r.quiet {
		progress = NewProgress(r.stderr, r.progressInterval)
		progressCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			progress.Run(progressCtx, start, r.snapshots)
		}()
		stopProgress = func() {
			cancel()
			<-done
		}
	}

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var firstErr error

	for _, sc := range r.scenarios {
		wg.Add(1)
		go func(sc *scenarioRun) {
			defer wg.Done()
			if err := sc.executor.Run(ctx); err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("scenario %s failed: %w", sc.name, err)
				}
				errMu.Unlock()
			}
		}(sc)
	}
	wg.Wait()

	duration := time.Since(start)
	stopProgress()
	if progress != nil {
		progress.Finish(duration, r.snapshots())
	}

	if c, ok := r.client.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}

	result := &Result{
		Data:      r.Summary(duration),
		Duration:  duration,
		Scenarios: make(map[string]executor.Stats, len(r.scenarios)),
	}
	for _, sc := range r.scenarios {
		result.Scenarios[sc.name] = sc.executor.Stats()
	}

	return result, firstErr
}

// Summary builds the summary data for a run of the given duration,
// including threshold results.
func (r *Runner) Summary(duration time.Duration) *summary.Data {
	data := r.metrics.Summary(metrics.SummaryOptions{
		TrendStats:  r.options.SummaryTrendStats,
		TimeUnit:    r.options.SummaryTimeUnit,
		NoColor:     r.options.NoColor,
		IsStdOutTTY: IsTerminal(r.stdout),
		IsStdErrTTY: IsTerminal(r.stderr),
		Duration:    duration,
		Include:     thresholdMetrics(r.thresholds),
	})
	evaluateThresholds(data, r.thresholds, r.metrics, duration)
	return data
}

// HandleSummary passes the result's data to the script's summary handler
// and writes the outputs it returns. Files are written relative to dir.
func (r *Runner) HandleSummary(result *Result, dir string) error {
	outputs, err := r.script.HandleSummary(result.Data)
	if err != nil {
		return fmt.Errorf("summary handler failed: %w", err)
	}
	return WriteOutputs(outputs, r.stdout, r.stderr, dir)
}

// snapshots returns the current progress of every scenario.
func (r *Runner) snapshots() []ScenarioProgress {
	out := make([]ScenarioProgress, 0, len(r.scenarios))
	for _, sc := range r.scenarios {
		out = append(out, ScenarioProgress{Name: sc.name, Stats: sc.executor.Stats()})
	}
	return out
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
