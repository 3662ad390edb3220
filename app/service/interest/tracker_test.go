package interest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestTracker(historySize int, decay time.Duration) (*Tracker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	tracker := NewTracker(historySize, decay)
	tracker.now = clock.Now

	return tracker, clock
}

func TestTrackerLazyCreate(t *testing.T) {
	tracker, clock := newTestTracker(10, time.Minute)

	_, ok := tracker.Get("chat")
	assert.False(t, ok)

	tracker.Track("chat", MessageRecord{UserID: "u1", UserName: "alice", Content: "hi"})

	state, ok := tracker.Get("chat")
	require.True(t, ok)
	assert.Equal(t, "chat", state.ChatID)
	assert.Equal(t, clock.now, state.LastMessageSent)
	assert.False(t, state.HasHandler())
	require.Len(t, state.Messages, 1)
	assert.Equal(t, "hi", state.Messages[0].Content)
	assert.Equal(t, clock.now, state.Messages[0].Timestamp)
}

func TestTrackerKeepsArrivalOrder(t *testing.T) {
	tracker, clock := newTestTracker(10, time.Minute)

	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		tracker.Track("chat", MessageRecord{Content: fmt.Sprint(i)})
	}

	state, _ := tracker.Get("chat")
	contents := make([]string, 0, len(state.Messages))
	for _, m := range state.Messages {
		contents = append(contents, m.Content)
	}

	assert.Equal(t, []string{"0", "1", "2", "3", "4"}, contents)
	assert.Equal(t, clock.now, state.LastMessageSent)
}

func TestTrackerHistoryIsBounded(t *testing.T) {
	tracker, _ := newTestTracker(3, time.Minute)

	for i := 0; i < 7; i++ {
		tracker.Track("chat", MessageRecord{Content: fmt.Sprint(i)})
	}

	state, _ := tracker.Get("chat")
	require.Len(t, state.Messages, 3)
	assert.Equal(t, "4", state.Messages[0].Content)
	assert.Equal(t, "6", state.Messages[2].Content)
}

func TestTrackerSnapshotIsCopy(t *testing.T) {
	tracker, _ := newTestTracker(3, time.Minute)
	tracker.Track("chat", MessageRecord{Content: "original"})

	state, _ := tracker.Get("chat")
	state.Messages[0].Content = "mutated"
	state.CurrentHandler = "someone"

	fresh, _ := tracker.Get("chat")
	assert.Equal(t, "original", fresh.Messages[0].Content)
	assert.Empty(t, fresh.CurrentHandler)
}

func TestTrackReturnsStateAtArrival(t *testing.T) {
	tracker, _ := newTestTracker(10, time.Minute)

	tracker.Track("chat", MessageRecord{UserID: "8", Content: "anyone up for lunch"})
	arrived := tracker.Track("chat", MessageRecord{UserID: "7", Content: "pizza sounds good"})
	tracker.Track("chat", MessageRecord{UserID: "9", Content: "brb"})

	require.Len(t, arrived.Messages, 2)
	assert.Equal(t, "chat", arrived.ChatID)
	assert.Equal(t, "pizza sounds good", arrived.Messages[1].Content)

	current, _ := tracker.Get("chat")
	assert.Len(t, current.Messages, 3)
}

func TestTrackerHandlerDecay(t *testing.T) {
	tracker, clock := newTestTracker(10, 5*time.Minute)

	tracker.Track("chat", MessageRecord{Content: "hello bot"})
	tracker.SetHandler("chat", "agent")

	clock.Advance(time.Minute)
	tracker.Track("chat", MessageRecord{Content: "still here"})

	state, _ := tracker.Get("chat")
	assert.Equal(t, "agent", state.CurrentHandler)

	clock.Advance(6 * time.Minute)
	tracker.Track("chat", MessageRecord{Content: "much later"})

	state, _ = tracker.Get("chat")
	assert.Empty(t, state.CurrentHandler)
}

func TestTrackerReleaseAndForget(t *testing.T) {
	tracker, _ := newTestTracker(10, time.Minute)

	tracker.SetHandler("chat", "agent")
	state, ok := tracker.Get("chat")
	require.True(t, ok)
	assert.Equal(t, "agent", state.CurrentHandler)

	tracker.ReleaseHandler("chat")
	state, _ = tracker.Get("chat")
	assert.Empty(t, state.CurrentHandler)

	tracker.Forget("chat")
	_, ok = tracker.Get("chat")
	assert.False(t, ok)
	assert.Equal(t, 0, tracker.Len())
}

func TestTrackerPrune(t *testing.T) {
	tracker, clock := newTestTracker(10, time.Minute)

	tracker.Track("old", MessageRecord{Content: "a"})
	clock.Advance(2 * time.Hour)
	tracker.Track("new", MessageRecord{Content: "b"})

	removed := tracker.Prune(time.Hour)

	assert.Equal(t, 1, removed)
	snapshot := tracker.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "new", snapshot[0].ChatID)
}

func TestTrackerSnapshotOrder(t *testing.T) {
	tracker, _ := newTestTracker(10, time.Minute)

	for _, chatID := range []string{"-300", "-100", "-200"} {
		tracker.Track(chatID, MessageRecord{Content: "hi"})
	}

	ids := make([]string, 0, 3)
	for _, state := range tracker.Snapshot() {
		ids = append(ids, state.ChatID)
	}
	assert.Equal(t, []string{"-100", "-200", "-300"}, ids)
}

func TestTrackerConcurrentChats(t *testing.T) {
	tracker := NewTracker(100, time.Minute)

	var wg sync.WaitGroup
	for c := 0; c < 8; c++ {
		chatID := fmt.Sprintf("chat-%d", c)

		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				tracker.Track(chatID, MessageRecord{Content: fmt.Sprint(i)})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, tracker.Len())
	for _, state := range tracker.Snapshot() {
		require.Len(t, state.Messages, 50)
		assert.Equal(t, "0", state.Messages[0].Content)
		assert.Equal(t, "49", state.Messages[49].Content)
	}
}
