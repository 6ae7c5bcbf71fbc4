package server

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/Sternrassler/ipintel-client/pkg/batch"
	"github.com/Sternrassler/ipintel-client/pkg/client"
	"github.com/Sternrassler/ipintel-client/pkg/report"
	"github.com/go-chi/chi/v5"
)

// Event is one NDJSON line of a batch stream.
type Event struct {
	Type      string          `json:"type"`
	BatchID   string          `json:"batch_id,omitempty"`
	IP        string          `json:"ip,omitempty"`
	Row       *report.Row     `json:"row,omitempty"`
	Report    client.Document `json:"report,omitempty"`
	Error     string          `json:"error,omitempty"`
	Completed int             `json:"completed,omitempty"`
	Total     int             `json:"total,omitempty"`
	Summary   *batch.Summary  `json:"summary,omitempty"`
}

// Event types.
const (
	EventProgress = "progress"
	EventSuccess  = "success"
	EventFailure  = "failure"
	EventComplete = "complete"
	EventSummary  = "summary"
)

func (s *Server) lookupIP(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")

	key, err := s.credentials.APIKey()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
		return
	}
	if key == "" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": batch.ErrMissingCredential.Error()})
		return
	}

	lookuper, err := s.newLookuper(key)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
		return
	}

	doc, err := lookuper.LookupIP(r.Context(), ip)
	if err != nil {
		writeJSON(w, lookupStatus(err), map[string]any{"ip": ip, "error": err.Error()})
		return
	}

	row := report.RowFromDocument(ip, doc)
	writeJSON(w, http.StatusOK, Event{Type: EventSuccess, IP: ip, Row: &row, Report: doc})
}

// lookupStatus maps a lookup failure to the response status. Upstream 4xx
// answers pass through; everything else is a bad gateway.
func lookupStatus(err error) int {
	var reqErr *client.RequestError
	if errors.As(err, &reqErr) && reqErr.Class == client.ErrorClassClient && reqErr.StatusCode >= 400 {
		return reqErr.StatusCode
	}
	return http.StatusBadGateway
}

func (s *Server) runBatch(w http.ResponseWriter, r *http.Request) {
	targets, err := parseTargets(io.LimitReader(r.Body, maxBatchBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "stream unsupported"})
		return
	}

	stream := &streamSink{enc: json.NewEncoder(w), flusher: flusher}
	h, err := s.coordinator.Start(r.Context(), targets, stream)
	if err != nil {
		var cfgErr *batch.ConfigurationError
		status := http.StatusBadRequest
		if errors.As(err, &cfgErr) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]any{"error": err.Error()})
		return
	}

	// The header must go out before the first event, which may already be
	// on its way from the batch goroutine.
	stream.begin(w, h.ID())

	select {
	case <-h.Done():
	case <-r.Context().Done():
		h.Stop()
	}

	summary := h.Wait()
	stream.emit(Event{Type: EventSummary, BatchID: h.ID(), Summary: &summary})
}

func (s *Server) stopBatch(w http.ResponseWriter, r *http.Request) {
	h := s.coordinator.Active()
	if h == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "no active batch"})
		return
	}
	h.Stop()
	summary := h.Wait()
	writeJSON(w, http.StatusOK, Event{Type: EventSummary, BatchID: h.ID(), Summary: &summary})
}

// parseTargets accepts a JSON array of strings or newline-separated IPs.
// Blank lines are skipped and surrounding whitespace trimmed.
func parseTargets(body io.Reader) ([]string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	var targets []string
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var raw []string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, errors.New("invalid json: expected an array of strings")
		}
		for _, t := range raw {
			if t = strings.TrimSpace(t); t != "" {
				targets = append(targets, t)
			}
		}
	} else {
		sc := bufio.NewScanner(bytes.NewReader(trimmed))
		for sc.Scan() {
			if t := strings.TrimSpace(sc.Text()); t != "" {
				targets = append(targets, t)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
	}

	if len(targets) == 0 {
		return nil, batch.ErrNoTargets
	}
	return targets, nil
}

// streamSink writes batch events as NDJSON. Events that arrive before begin
// are held back until the response header has been written.
type streamSink struct {
	mu      sync.Mutex
	enc     interface{ Encode(v any) error }
	flusher http.Flusher
	id      string
	started bool
	pending []Event
}

func (s *streamSink) begin(w http.ResponseWriter, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Batch-ID", id)
	w.WriteHeader(http.StatusOK)

	s.id = id
	s.started = true
	for _, e := range s.pending {
		s.write(e)
	}
	s.pending = nil
	s.flusher.Flush()
}

func (s *streamSink) emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.pending = append(s.pending, e)
		return
	}
	s.write(e)
	s.flusher.Flush()
}

func (s *streamSink) write(e Event) {
	if e.BatchID == "" {
		e.BatchID = s.id
	}
	_ = s.enc.Encode(e)
}

func (s *streamSink) OnProgress(completed, total int) {
	s.emit(Event{Type: EventProgress, Completed: completed, Total: total})
}

func (s *streamSink) OnSuccess(ip string, payload client.Document) {
	row := report.RowFromDocument(ip, payload)
	s.emit(Event{Type: EventSuccess, IP: ip, Row: &row, Report: payload})
}

func (s *streamSink) OnFailure(ip, message string) {
	s.emit(Event{Type: EventFailure, IP: ip, Error: message})
}

func (s *streamSink) OnComplete() {
	s.emit(Event{Type: EventComplete})
}
