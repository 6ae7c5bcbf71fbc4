// Package testutil provides testing utilities for the Criminal IP client.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// IPReportPath is the path the mock serves IP reports on, including the /v1 root.
const IPReportPath = "/v1/asset/ip/report"

// MockResponse defines the behavior for a mock API response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock Criminal IP server for testing.
// Responses for the IP report endpoint are chosen by the "ip" query parameter.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	byIP     map[string]MockResponse

	requestCount int
	inFlight     int
	maxInFlight  int
	lastAPIKey   string
	seenIPs      map[string]int
}

// NewMockAPI creates a new mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
		byIP:     make(map[string]MockResponse),
		seenIPs:  make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.URL.Query().Get("ip")

		mock.mu.Lock()
		mock.requestCount++
		mock.inFlight++
		if mock.inFlight > mock.maxInFlight {
			mock.maxInFlight = mock.inFlight
		}
		mock.lastAPIKey = r.Header.Get("x-api-key")
		if ip != "" {
			mock.seenIPs[ip]++
		}
		handler, hasHandler := mock.handlers[r.URL.Path]
		resp, hasIP := mock.byIP[ip]
		mock.mu.Unlock()

		defer func() {
			mock.mu.Lock()
			mock.inFlight--
			mock.mu.Unlock()
		}()

		switch {
		case hasHandler:
			handler(w, r)
		case hasIP && r.URL.Path == IPReportPath:
			writeResponse(w, r, resp)
		default:
			mock.defaultHandler(w, r)
		}
	}))

	return mock
}

// URL returns the API root of the mock server (with the /v1 suffix).
func (m *MockAPI) URL() string {
	return m.server.URL + "/v1"
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.maxInFlight = 0
	m.lastAPIKey = ""
	m.seenIPs = make(map[string]int)
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetIPResponse configures the IP report response for one address.
func (m *MockAPI) SetIPResponse(ip string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byIP[ip] = resp
}

// RequestCount returns the number of requests made to the server.
func (m *MockAPI) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// MaxInFlight returns the highest number of concurrent requests observed.
func (m *MockAPI) MaxInFlight() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxInFlight
}

// LastAPIKey returns the x-api-key header of the most recent request.
func (m *MockAPI) LastAPIKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastAPIKey
}

// Hits returns how many times ip was requested.
func (m *MockAPI) Hits(ip string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.seenIPs[ip]
}

func writeResponse(w http.ResponseWriter, r *http.Request, resp MockResponse) {
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if resp.StatusCode == 0 {
		resp.StatusCode = http.StatusOK
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// defaultHandler returns a minimal report for any IP, or 404 for unknown paths.
func (m *MockAPI) defaultHandler(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("x-api-key") == "" {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status": 401, "message": "invalid api key"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path != IPReportPath {
		w.Write([]byte(`{"status": 200}`))
		return
	}
	w.Write([]byte(ReportBody(r.URL.Query().Get("ip"), "US", "Mountain View", "Example Org", 3, false, false)))
}

// ReportBody renders a minimal IP report in the API's shape.
func ReportBody(ip, country, city, org string, openPorts int, vpn, mobile bool) string {
	return fmt.Sprintf(`{
  "ip": %q,
  "whois": {"count": 1, "data": [{"org_country_code": %q, "city": %q, "org_name": %q}]},
  "port": {"count": %d, "data": []},
  "issues": {"is_vpn": %t, "is_mobile": %t, "is_tor": false}
}`, ip, country, city, org, openPorts, vpn, mobile)
}

// NewReportResponse creates a 200 OK response carrying a report.
func NewReportResponse(ip, country string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       ReportBody(ip, country, "City", "Org", 1, false, false),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"status": 500, "message": "internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewBadRequestResponse creates a 400 response such as the API returns for an invalid IP.
func NewBadRequestResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       `{"status": 400, "message": "invalid ip address"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewSlowResponse creates a report response delivered after delay.
func NewSlowResponse(ip string, delay time.Duration) MockResponse {
	resp := NewReportResponse(ip, "US")
	resp.Delay = delay
	return resp
}
