package interest

import (
	"sync"
	"time"

	"tgbridge/app/config"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
)

const (
	defaultHistorySize = 20
	defaultDecayTime   = 5 * time.Minute
)

// ChatState is a snapshot of what the tracker knows about a chat.
type ChatState struct {
	ChatID          string          `json:"chat_id"`
	CurrentHandler  string          `json:"current_handler,omitempty"`
	LastMessageSent time.Time       `json:"last_message_sent"`
	Messages        []MessageRecord `json:"messages"`
}

// HasHandler reports whether some response mode currently owns the chat.
func (s *ChatState) HasHandler() bool {
	return s != nil && s.CurrentHandler != ""
}

type chatEntry struct {
	handler  string
	lastSeen time.Time
	history  *history
}

// Tracker keeps rolling per-chat history and the current handler of each
// chat. It is the only owner of that state; callers receive copies.
type Tracker struct {
	mu    sync.Mutex
	chats map[string]*chatEntry

	historySize int
	decayTime   time.Duration
	now         func() time.Time
}

func New(di *do.Injector) (*Tracker, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewTracker(cfg.Interest.HistorySize, cfg.Interest.DecayTime), nil
}

func NewTracker(historySize int, decayTime time.Duration) *Tracker {
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	if decayTime <= 0 {
		decayTime = defaultDecayTime
	}

	return &Tracker{
		chats:       make(map[string]*chatEntry),
		historySize: historySize,
		decayTime:   decayTime,
		now:         time.Now,
	}
}

// Track appends rec to the chat history, creating the chat on first sight,
// and returns the chat as it is right after the append. A handler idle for
// longer than the decay time is dropped first.
func (t *Tracker) Track(chatID string, rec MessageRecord) ChatState {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}

	entry, ok := t.chats[chatID]
	if !ok {
		entry = &chatEntry{
			history: newHistory(t.historySize),
		}
		t.chats[chatID] = entry
	}

	if entry.handler != "" && now.Sub(entry.lastSeen) > t.decayTime {
		entry.handler = ""
	}

	entry.history.add(rec)
	entry.lastSeen = now

	return entry.snapshot(chatID)
}

func (t *Tracker) Get(chatID string) (ChatState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.chats[chatID]
	if !ok {
		return ChatState{}, false
	}

	return entry.snapshot(chatID), true
}

// SetHandler marks handler as the active responder of the chat.
func (t *Tracker) SetHandler(chatID, handler string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.chats[chatID]
	if !ok {
		entry = &chatEntry{
			history: newHistory(t.historySize),
		}
		t.chats[chatID] = entry
	}

	entry.handler = handler
	entry.lastSeen = t.now()
}

func (t *Tracker) ReleaseHandler(chatID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.chats[chatID]; ok {
		entry.handler = ""
	}
}

func (t *Tracker) Forget(chatID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.chats, chatID)
}

// Prune evicts chats without activity for longer than ttl and returns how
// many were removed.
func (t *Tracker) Prune(ttl time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0

	for chatID, entry := range t.chats {
		if now.Sub(entry.lastSeen) > ttl {
			delete(t.chats, chatID)
			removed++
		}
	}

	return removed
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.chats)
}

// Snapshot returns every chat ordered by chat id.
func (t *Tracker) Snapshot() []ChatState {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make([]ChatState, 0, len(t.chats))
	for chatID, entry := range t.chats {
		result = append(result, entry.snapshot(chatID))
	}

	return pie.SortUsing(result, func(a, b ChatState) bool {
		return a.ChatID < b.ChatID
	})
}

func (e *chatEntry) snapshot(chatID string) ChatState {
	return ChatState{
		ChatID:          chatID,
		CurrentHandler:  e.handler,
		LastMessageSent: e.lastSeen,
		Messages:        e.history.list(),
	}
}
