package agentmonitor

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	StageTurnStart = "turn_start"
	StageToolCall  = "tool_call"
	StageTurnDone  = "turn_done"

	StatusOk    = "ok"
	StatusError = "error"
)

type Event struct {
	Timestamp      time.Time `json:"timestamp"`
	UserID         int64     `json:"-"`
	ConversationID string    `json:"conversation_id"`
	Mode           string    `json:"mode"`  // sync | stream
	Stage          string    `json:"stage"` // turn_start | tool_call | turn_done
	Tool           string    `json:"tool,omitempty"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
	DurationMs     int64     `json:"duration_ms,omitempty"`
}

type Stats struct {
	TotalTurns     int64   `json:"total_turns"`
	TotalToolCalls int64   `json:"total_tool_calls"`
	TotalCompleted int64   `json:"total_completed"`
	TotalErrors    int64   `json:"total_errors"`
	RecentEvents   []Event `json:"recent_events"`
}

// Monitor keeps the most recent agent events in a ring buffer alongside
// running totals. The zero value is not usable; call New.
type Monitor struct {
	eventsMu sync.Mutex
	events   []Event
	idx      int
	count    int
	ttl      time.Duration
	now      func() time.Time

	totalTurns     int64
	totalToolCalls int64
	totalCompleted int64
	totalErrors    int64
}

// New keeps up to size events. A positive ttl hides events older than it.
func New(size int, ttl time.Duration) *Monitor {
	if size <= 0 {
		size = 200
	}
	return &Monitor{events: make([]Event, size), ttl: ttl, now: time.Now}
}

// Record is safe on a nil Monitor.
func (m *Monitor) Record(e Event) {
	if m == nil {
		return
	}
	e.Timestamp = m.now().UTC()

	switch e.Stage {
	case StageTurnStart:
		atomic.AddInt64(&m.totalTurns, 1)
	case StageToolCall:
		atomic.AddInt64(&m.totalToolCalls, 1)
	case StageTurnDone:
		if e.Status == StatusOk {
			atomic.AddInt64(&m.totalCompleted, 1)
		}
	}
	if e.Status == StatusError {
		atomic.AddInt64(&m.totalErrors, 1)
	}

	m.eventsMu.Lock()
	m.events[m.idx] = e
	m.idx = (m.idx + 1) % len(m.events)
	if m.count < len(m.events) {
		m.count++
	}
	m.eventsMu.Unlock()
}

// Stats returns the totals and the retained events of one user, oldest
// first. userID 0 returns every user's events.
func (m *Monitor) Stats(userID int64) Stats {
	if m == nil {
		return Stats{RecentEvents: []Event{}}
	}
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()

	res := make([]Event, 0, m.count)
	cutoff := time.Time{}
	if m.ttl > 0 {
		cutoff = m.now().UTC().Add(-m.ttl)
	}
	start := (m.idx - m.count) % len(m.events)
	if start < 0 {
		start += len(m.events)
	}
	for i := 0; i < m.count; i++ {
		e := m.events[(start+i)%len(m.events)]
		if !cutoff.IsZero() && e.Timestamp.Before(cutoff) {
			continue
		}
		if userID != 0 && e.UserID != userID {
			continue
		}
		res = append(res, e)
	}

	return Stats{
		TotalTurns:     atomic.LoadInt64(&m.totalTurns),
		TotalToolCalls: atomic.LoadInt64(&m.totalToolCalls),
		TotalCompleted: atomic.LoadInt64(&m.totalCompleted),
		TotalErrors:    atomic.LoadInt64(&m.totalErrors),
		RecentEvents:   res,
	}
}
