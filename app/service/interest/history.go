package interest

import "time"

// MessageRecord is the lightweight view of a chat message kept for interest
// decisions.
type MessageRecord struct {
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// history is a fixed capacity ring of records, oldest first.
type history struct {
	records []MessageRecord
	start   int
	size    int
}

func newHistory(capacity int) *history {
	return &history{
		records: make([]MessageRecord, capacity),
	}
}

func (h *history) add(rec MessageRecord) {
	capacity := len(h.records)

	if h.size < capacity {
		h.records[(h.start+h.size)%capacity] = rec
		h.size++
		return
	}

	h.records[h.start] = rec
	h.start = (h.start + 1) % capacity
}

func (h *history) list() []MessageRecord {
	result := make([]MessageRecord, 0, h.size)
	for i := 0; i < h.size; i++ {
		result = append(result, h.records[(h.start+i)%len(h.records)])
	}

	return result
}
