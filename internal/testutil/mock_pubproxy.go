// Package testutil provides testing utilities for the lead-oxide client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse overrides the mock's default listing behavior.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockPubProxy is a configurable stand-in for the pubproxy listing API.
// By default it answers every request with as many generated records as
// the limit query parameter asks for.
type MockPubProxy struct {
	server *httptest.Server

	mu           sync.Mutex
	override     *MockResponse
	requestCount int
	requestTimes []time.Time
	lastQuery    map[string][]string
}

// NewMockPubProxy starts the mock server. Callers own Close.
func NewMockPubProxy() *MockPubProxy {
	mock := &MockPubProxy{}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.requestTimes = append(mock.requestTimes, time.Now())
		mock.lastQuery = r.URL.Query()
		override := mock.override
		mock.mu.Unlock()

		if override != nil {
			if override.Delay > 0 {
				time.Sleep(override.Delay)
			}
			w.WriteHeader(override.StatusCode)
			fmt.Fprint(w, override.Body)
			return
		}

		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil || limit <= 0 {
			limit = 5
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, listingBody(limit))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockPubProxy) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockPubProxy) Close() {
	m.server.Close()
}

// SetResponse makes every subsequent request answer with resp instead of
// generated records. Pass nil to restore the default behavior.
func (m *MockPubProxy) SetResponse(resp *MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.override = resp
}

// RequestCount reports how many requests the mock has served.
func (m *MockPubProxy) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// RequestTimes returns the arrival instant of every request, in order.
func (m *MockPubProxy) RequestTimes() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Time, len(m.requestTimes))
	copy(out, m.requestTimes)
	return out
}

// LastQuery returns the query parameters of the most recent request.
func (m *MockPubProxy) LastQuery() map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQuery
}

// Reset clears all tracking state.
func (m *MockPubProxy) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.requestTimes = nil
	m.lastQuery = nil
	m.override = nil
}

// listingBody builds a pubproxy-shaped JSON body with count records,
// using the string-typed port/speed and 0/1 flags the real service
// sends.
func listingBody(count int) string {
	type support struct {
		HTTPS     int `json:"https"`
		Get       int `json:"get"`
		Post      int `json:"post"`
		Cookies   int `json:"cookies"`
		Referer   int `json:"referer"`
		UserAgent int `json:"user_agent"`
		Google    int `json:"google"`
	}
	type record struct {
		IP          string  `json:"ip"`
		Port        string  `json:"port"`
		Country     string  `json:"country"`
		LastChecked string  `json:"last_checked"`
		ProxyLevel  string  `json:"proxy_level"`
		Type        string  `json:"type"`
		Speed       string  `json:"speed"`
		Support     support `json:"support"`
	}

	records := make([]record, count)
	for i := range records {
		records[i] = record{
			IP:          fmt.Sprintf("10.0.0.%d", i+1),
			Port:        strconv.Itoa(8000 + i),
			Country:     "CA",
			LastChecked: "2020-01-01 01:01:01",
			ProxyLevel:  "anonymous",
			Type:        "http",
			Speed:       "6",
			Support:     support{HTTPS: 1, Get: 1},
		}
	}

	body, _ := json.Marshal(map[string]any{"data": records})
	return string(body)
}
