package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for the sync engine and the
// HTTP surface.
type Metrics struct {
	mu              sync.Mutex
	requestCount    map[string]int64
	errorCount      map[string]int64
	factCount       map[string]int64
	droppedEvents   map[string]int64
	commandFailures map[string]int64
	resyncCount     int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]int64),
		errorCount:      make(map[string]int64),
		factCount:       make(map[string]int64),
		droppedEvents:   make(map[string]int64),
		commandFailures: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordFact counts a fact applied by the reconciler.
func (m *Metrics) RecordFact(kind string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factCount[kind]++
}

// RecordDroppedEvent counts a malformed or unknown channel event.
func (m *Metrics) RecordDroppedEvent(channel string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.droppedEvents[channel]++
}

// RecordCommandFailure counts a failed upstream command.
func (m *Metrics) RecordCommandFailure(op string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commandFailures[op]++
}

// RecordResync counts a full list refetch.
func (m *Metrics) RecordResync() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resyncCount++
}

// FactCount returns the number of applied facts of a kind.
func (m *Metrics) FactCount(kind string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.factCount[kind]
}

// DroppedEventCount returns the dropped event total for a channel.
func (m *Metrics) DroppedEventCount(channel string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.droppedEvents[channel]
}

// ResyncCount returns the number of full list refetches.
func (m *Metrics) ResyncCount() int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resyncCount
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
