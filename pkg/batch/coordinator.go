package batch

import (
	"context"
	"sync"

	"github.com/Sternrassler/ipintel-client/pkg/credential"
	"github.com/google/uuid"
)

// Handle is one in-flight batch started by a Coordinator.
type Handle struct {
	id      string
	token   *Token
	done    chan struct{}
	summary Summary
}

// ID returns the batch identifier, also logged as batch_id.
func (h *Handle) ID() string {
	return h.id
}

// Stop requests cancellation of the batch. It does not wait.
func (h *Handle) Stop() {
	h.token.Stop()
}

// Done is closed after the batch delivered OnComplete.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the batch has finished and returns its summary.
func (h *Handle) Wait() Summary {
	<-h.done
	return h.summary
}

// Coordinator owns at most one active batch. Starting a batch stops the
// previous one and waits for it to complete first, so two batches never
// write to the same consumer at once.
//
// startMu serializes Start and Shutdown while they wait on a batch. mu only
// guards active, so sinks may call Active from inside a callback.
type Coordinator struct {
	executor    *Executor
	credentials credential.Provider

	startMu sync.Mutex

	mu     sync.Mutex
	active *Handle
}

// NewCoordinator creates a coordinator that reads the API key from provider
// at the start of every batch.
func NewCoordinator(executor *Executor, provider credential.Provider) *Coordinator {
	return &Coordinator{
		executor:    executor,
		credentials: provider,
	}
}

// Start validates and launches a batch on its own goroutine and returns its
// handle. The credential is read once here; later changes to the provider do
// not affect the running batch. Start-up errors are returned synchronously and
// leave any previously active batch running.
func (c *Coordinator) Start(ctx context.Context, targets []string, sink Sink) (*Handle, error) {
	key, err := c.credentials.APIKey()
	if err != nil {
		batchRunsTotal.WithLabelValues("rejected").Inc()
		return nil, &ConfigurationError{Err: err}
	}

	req := Request{
		Targets:    append([]string(nil), targets...),
		Credential: key,
	}
	lookuper, err := c.executor.prepare(req)
	if err != nil {
		return nil, err
	}

	c.startMu.Lock()
	defer c.startMu.Unlock()

	h := &Handle{
		id:    uuid.NewString(),
		token: NewToken(),
		done:  make(chan struct{}),
	}

	c.mu.Lock()
	prev := c.active
	c.active = h
	c.mu.Unlock()

	if prev != nil {
		prev.Stop()
		prev.Wait()
	}

	go func() {
		defer close(h.done)
		h.summary = c.executor.run(ctx, h.id, lookuper, req.Targets, sink, h.token)
	}()

	return h, nil
}

// Active returns the most recently started batch, or nil. While Start waits
// for the previous batch to finish, Active already reports the new one.
func (c *Coordinator) Active() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Shutdown stops the active batch and waits for it to complete.
func (c *Coordinator) Shutdown() {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.mu.Lock()
	h := c.active
	c.active = nil
	c.mu.Unlock()

	if h == nil {
		return
	}
	h.Stop()
	h.Wait()
}
