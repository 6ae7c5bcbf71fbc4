package report

import (
	"sort"
	"sync"

	"github.com/Sternrassler/ipintel-client/pkg/client"
)

// Failure is a target that produced no report.
type Failure struct {
	IP      string
	Message string
}

// Collector is a batch sink that accumulates rows and failures in arrival
// order. Reads are safe while a batch is still writing.
type Collector struct {
	mu        sync.Mutex
	rows      []Row
	failures  []Failure
	completed int
	total     int
	done      bool
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// OnProgress records the latest progress counts.
func (c *Collector) OnProgress(completed, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed, c.total = completed, total
}

// OnSuccess appends the row built from payload.
func (c *Collector) OnSuccess(ip string, payload client.Document) {
	row := RowFromDocument(ip, payload)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, row)
}

// OnFailure records the failed target.
func (c *Collector) OnFailure(ip, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, Failure{IP: ip, Message: message})
}

// OnComplete marks the batch as finished.
func (c *Collector) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done = true
}

// Rows returns a copy of the collected rows.
func (c *Collector) Rows() []Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Row(nil), c.rows...)
}

// SortedRows returns the rows ordered by IP for stable output.
func (c *Collector) SortedRows() []Row {
	rows := c.Rows()
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].IP < rows[j].IP })
	return rows
}

// Failures returns a copy of the collected failures.
func (c *Collector) Failures() []Failure {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Failure(nil), c.failures...)
}

// Progress returns the last reported progress.
func (c *Collector) Progress() (completed, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed, c.total
}

// Done reports whether OnComplete has been received.
func (c *Collector) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Reset clears everything so the collector can serve a new batch.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows, c.failures = nil, nil
	c.completed, c.total = 0, 0
	c.done = false
}
