package analytics

import "time"

type EventType string

const (
	EventGenerated EventType = "generated"
	EventCacheHit  EventType = "cache_hit"
	EventEmpty     EventType = "empty"
	EventFailed    EventType = "failed"
)

// QuestionEvent describes one related-question request as served.
type QuestionEvent struct {
	Type      EventType `json:"type"`
	Keyword   string    `json:"keyword"`
	DateFrom  string    `json:"date_from"`
	DateTo    string    `json:"date_to"`
	Questions int       `json:"questions"`
	CacheHit  bool      `json:"cache_hit"`
	LatencyMs int64     `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Classify picks the event type from the outcome of a request.
func Classify(questions int, cacheHit bool, err error) EventType {
	switch {
	case err != nil:
		return EventFailed
	case cacheHit:
		return EventCacheHit
	case questions == 0:
		return EventEmpty
	default:
		return EventGenerated
	}
}
