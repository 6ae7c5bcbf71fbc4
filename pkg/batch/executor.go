package batch

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/ipintel-client/pkg/client"
	"github.com/Sternrassler/ipintel-client/pkg/logging"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for batch runs.
var (
	batchRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ipintel_batch_runs_total",
		Help: "Total batch runs by result (completed, canceled, rejected)",
	}, []string{"result"})

	batchOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ipintel_batch_outcomes_total",
		Help: "Total per-target batch outcomes (success, failure, dropped)",
	}, []string{"outcome"})

	batchInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ipintel_batch_inflight_lookups",
		Help: "Lookups currently executing across all batches",
	})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ipintel_batch_duration_seconds",
		Help:    "Wall-clock duration of batch runs",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 300},
	})
)

// progressLogInterval controls how often progress is logged at info level.
const progressLogInterval = 50

// LookuperFactory builds the lookup client for one batch from its credential.
type LookuperFactory func(apiKey string) (client.Lookuper, error)

// ClientFactory returns a LookuperFactory that builds *client.Client values
// from base with the batch credential filled in.
func ClientFactory(base client.Config) LookuperFactory {
	return func(apiKey string) (client.Lookuper, error) {
		cfg := base
		cfg.APIKey = apiKey
		return client.New(cfg)
	}
}

// Config holds executor configuration.
type Config struct {
	// MaxConcurrency caps the worker pool width. Defaults to runtime.NumCPU().
	MaxConcurrency int

	// LookupTimeout bounds each lookup. Zero leaves it to the API client.
	LookupTimeout time.Duration
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: runtime.NumCPU(),
	}
}

// Request is one batch: the targets plus the credential captured at start.
// Neither is modified while the batch runs.
type Request struct {
	Targets    []string
	Credential string
}

// Validate checks the start-up conditions of a batch.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Credential) == "" {
		return &ConfigurationError{Err: ErrMissingCredential}
	}
	if len(r.Targets) == 0 {
		return &PreconditionError{Err: ErrNoTargets}
	}
	return nil
}

// Summary describes a finished batch run.
type Summary struct {
	ID        string        `json:"id"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Dropped   int           `json:"dropped"`
	Canceled  bool          `json:"canceled"`
	Duration  time.Duration `json:"duration_ns"`
}

// Completed returns the number of targets that produced an outcome.
func (s Summary) Completed() int {
	return s.Succeeded + s.Failed
}

// Outcome is the terminal result for one target: Payload on success,
// Err on failure.
type Outcome struct {
	IP      string
	Payload client.Document
	Err     error
}

// Succeeded reports whether the lookup returned a report.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Message returns the failure description delivered to OnFailure.
func (o Outcome) Message() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Executor runs batches of IP lookups on a bounded worker pool.
type Executor struct {
	newLookuper LookuperFactory
	config      Config
	logger      zerolog.Logger
}

// NewExecutor creates a new executor.
func NewExecutor(factory LookuperFactory, config Config) *Executor {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = runtime.NumCPU()
	}
	if config.LookupTimeout < 0 {
		config.LookupTimeout = 0
	}

	return &Executor{
		newLookuper: factory,
		config:      config,
		logger:      logging.NewLogger("batch"),
	}
}

// Width returns the worker pool width used for n targets.
func (e *Executor) Width(n int) int {
	width := e.config.MaxConcurrency
	if n < width {
		width = n
	}
	if width < 1 {
		width = 1
	}
	return width
}

// Execute runs req to completion or until token is stopped, delivering events
// to sink from the calling goroutine. Start-up failures are returned before
// any worker starts and without touching sink. A nil token means the run can
// only be cancelled through ctx.
func (e *Executor) Execute(ctx context.Context, req Request, sink Sink, token *Token) (Summary, error) {
	lookuper, err := e.prepare(req)
	if err != nil {
		return Summary{}, err
	}
	if token == nil {
		token = NewToken()
	}
	return e.run(ctx, uuid.NewString(), lookuper, req.Targets, sink, token), nil
}

// prepare validates req and builds its lookup client.
func (e *Executor) prepare(req Request) (client.Lookuper, error) {
	if err := req.Validate(); err != nil {
		batchRunsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	lookuper, err := e.newLookuper(req.Credential)
	if err != nil {
		batchRunsTotal.WithLabelValues("rejected").Inc()
		return nil, &ConfigurationError{Err: err}
	}
	return lookuper, nil
}

// run is the fan-out/fan-in loop. It returns after the workers have exited and
// OnComplete has been delivered.
func (e *Executor) run(ctx context.Context, id string, lookuper client.Lookuper, targets []string, sink Sink, token *Token) Summary {
	start := time.Now()
	total := len(targets)
	width := e.Width(total)
	logger := e.logger.With().Str("batch_id", id).Logger()

	logger.Info().
		Int("total", total).
		Int("width", width).
		Msg("Starting batch")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Propagate a stop request into runCtx so in-flight requests are aborted,
	// and treat parent cancellation as a stop request.
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			token.Stop()
			cancel()
		case <-token.Done():
			cancel()
		case <-finished:
		}
	}()
	stopped := func() bool {
		return token.Stopped() || ctx.Err() != nil
	}

	queue := make(chan string)
	// One slot per target, so workers never block on a collector that stopped reading.
	results := make(chan Outcome, total)

	go func() {
		defer close(queue)
		for _, ip := range targets {
			select {
			case queue <- ip:
			case <-runCtx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < width; i++ {
		wg.Add(1)
		go e.worker(runCtx, lookuper, queue, results, &wg, i, logger)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	summary := Summary{ID: id, Total: total}
	completed := 0
	for outcome := range results {
		if stopped() {
			break
		}

		completed++
		if outcome.Succeeded() {
			summary.Succeeded++
			batchOutcomesTotal.WithLabelValues("success").Inc()
			sink.OnSuccess(outcome.IP, outcome.Payload)
		} else {
			summary.Failed++
			batchOutcomesTotal.WithLabelValues("failure").Inc()
			logger.Warn().
				Err(outcome.Err).
				Str("target", outcome.IP).
				Msg("Lookup failed")
			sink.OnFailure(outcome.IP, outcome.Message())
		}
		sink.OnProgress(completed, total)

		if completed%progressLogInterval == 0 {
			logger.Info().
				Int("completed", completed).
				Int("total", total).
				Float64("progress_pct", float64(completed)/float64(total)*100).
				Msg("Batch progress")
		}
	}

	// Drain whatever is still arriving; those results are dropped.
	for range results {
	}
	if ctx.Err() != nil {
		token.Stop()
	}

	summary.Dropped = total - completed
	summary.Canceled = summary.Dropped > 0
	summary.Duration = time.Since(start)

	batchOutcomesTotal.WithLabelValues("dropped").Add(float64(summary.Dropped))
	batchDuration.Observe(summary.Duration.Seconds())
	if summary.Canceled {
		batchRunsTotal.WithLabelValues("canceled").Inc()
	} else {
		batchRunsTotal.WithLabelValues("completed").Inc()
	}

	logger.Info().
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("dropped", summary.Dropped).
		Bool("canceled", summary.Canceled).
		Dur("duration", summary.Duration).
		Msg("Batch complete")

	sink.OnComplete()
	return summary
}

// worker processes targets from the queue until it is closed or the run is stopped.
func (e *Executor) worker(ctx context.Context, lookuper client.Lookuper, queue <-chan string, results chan<- Outcome, wg *sync.WaitGroup, workerID int, logger zerolog.Logger) {
	defer wg.Done()
	processed := 0

	for ip := range queue {
		if ctx.Err() != nil {
			logger.Debug().
				Int("worker_id", workerID).
				Int("processed", processed).
				Msg("Worker stopping (batch stopped)")
			return
		}

		results <- e.lookup(ctx, lookuper, ip)
		processed++
	}

	logger.Debug().
		Int("worker_id", workerID).
		Int("processed", processed).
		Msg("Worker completed")
}

// lookup performs one call, bounded by LookupTimeout when configured.
func (e *Executor) lookup(ctx context.Context, lookuper client.Lookuper, ip string) Outcome {
	batchInflight.Inc()
	defer batchInflight.Dec()

	if e.config.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.LookupTimeout)
		defer cancel()
	}

	doc, err := lookuper.LookupIP(ctx, ip)
	if err != nil {
		return Outcome{IP: ip, Err: err}
	}
	return Outcome{IP: ip, Payload: doc}
}
