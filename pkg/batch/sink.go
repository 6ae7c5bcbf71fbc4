package batch

import "github.com/Sternrassler/ipintel-client/pkg/client"

// Sink consumes the events of one batch run. Calls are made sequentially from
// a single goroutine, so implementations need not be safe for concurrent use.
// A sink must not call Coordinator.Start or Coordinator.Shutdown, which wait
// for the batch that is delivering the event.
type Sink interface {
	// OnProgress reports completed lookups out of total, after each outcome.
	OnProgress(completed, total int)

	// OnSuccess delivers the unmodified report for ip.
	OnSuccess(ip string, payload client.Document)

	// OnFailure delivers a human-readable description of why ip failed.
	OnFailure(ip, message string)

	// OnComplete is called exactly once, after every other event of the run.
	OnComplete()
}

// SinkFuncs adapts optional callbacks to a Sink. Nil callbacks are skipped.
type SinkFuncs struct {
	Progress func(completed, total int)
	Success  func(ip string, payload client.Document)
	Failure  func(ip, message string)
	Complete func()
}

// OnProgress calls Progress if set.
func (f SinkFuncs) OnProgress(completed, total int) {
	if f.Progress != nil {
		f.Progress(completed, total)
	}
}

// OnSuccess calls Success if set.
func (f SinkFuncs) OnSuccess(ip string, payload client.Document) {
	if f.Success != nil {
		f.Success(ip, payload)
	}
}

// OnFailure calls Failure if set.
func (f SinkFuncs) OnFailure(ip, message string) {
	if f.Failure != nil {
		f.Failure(ip, message)
	}
}

// OnComplete calls Complete if set.
func (f SinkFuncs) OnComplete() {
	if f.Complete != nil {
		f.Complete()
	}
}

// MultiSink forwards every event to each sink in order. Nil entries are skipped.
type MultiSink []Sink

// OnProgress implements Sink.
func (m MultiSink) OnProgress(completed, total int) {
	for _, s := range m {
		if s == nil {
			continue
		}
		s.OnProgress(completed, total)
	}
}

// OnSuccess implements Sink.
func (m MultiSink) OnSuccess(ip string, payload client.Document) {
	for _, s := range m {
		if s == nil {
			continue
		}
		s.OnSuccess(ip, payload)
	}
}

// OnFailure implements Sink.
func (m MultiSink) OnFailure(ip, message string) {
	for _, s := range m {
		if s == nil {
			continue
		}
		s.OnFailure(ip, message)
	}
}

// OnComplete implements Sink.
func (m MultiSink) OnComplete() {
	for _, s := range m {
		if s == nil {
			continue
		}
		s.OnComplete()
	}
}
