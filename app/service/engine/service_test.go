package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tgbridge/app/model"
	"tgbridge/app/service/interest"
	"tgbridge/app/service/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingPipeline struct {
	mu      sync.Mutex
	intake  []string
	done    atomic.Int32
	running atomic.Int32
	peak    atomic.Int32
	release chan struct{}
}

func (p *recordingPipeline) Intake(msg *model.Message) func(context.Context) {
	p.mu.Lock()
	p.intake = append(p.intake, msg.ID)
	p.mu.Unlock()

	if msg.Text == "" {
		return nil
	}

	return func(ctx context.Context) {
		current := p.running.Add(1)
		for {
			peak := p.peak.Load()
			if current <= peak || p.peak.CompareAndSwap(peak, current) {
				break
			}
		}

		if p.release != nil {
			select {
			case <-p.release:
			case <-ctx.Done():
			}
		}

		p.running.Add(-1)
		p.done.Add(1)
	}
}

func (p *recordingPipeline) intakeOrder() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.intake...)
}

func TestRunProcessesInArrivalOrder(t *testing.T) {
	q := queue.NewQueue(16)
	pipeline := &recordingPipeline{}
	svc := NewService(Options{Queue: q, Pipeline: pipeline, MaxConcurrency: 4})

	var want []string
	for i := range 10 {
		id := fmt.Sprint(i)
		want = append(want, id)
		text := "hello"
		if i%3 == 0 {
			text = ""
		}
		require.True(t, q.Add(&model.Message{ID: id, ChatID: "-1", Text: text}))
	}
	require.NoError(t, q.Shutdown())

	require.NoError(t, svc.Run(context.Background()))

	assert.Equal(t, want, pipeline.intakeOrder())
	assert.Equal(t, int32(6), pipeline.done.Load())
}

func TestRunLimitsConcurrency(t *testing.T) {
	q := queue.NewQueue(16)
	pipeline := &recordingPipeline{release: make(chan struct{})}
	svc := NewService(Options{Queue: q, Pipeline: pipeline, MaxConcurrency: 2})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- svc.Run(ctx)
	}()

	for i := range 5 {
		require.True(t, q.Add(&model.Message{ID: fmt.Sprint(i), ChatID: "-1", Text: "hi"}))
	}

	require.Eventually(t, func() bool {
		return pipeline.running.Load() == 2
	}, time.Second, 5*time.Millisecond)

	close(pipeline.release)

	require.Eventually(t, func() bool {
		return pipeline.done.Load() == 5
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-result)
	assert.LessOrEqual(t, pipeline.peak.Load(), int32(2))
}

func TestRunStopsOnCancel(t *testing.T) {
	q := queue.NewQueue(4)
	pipeline := &recordingPipeline{release: make(chan struct{})}
	svc := NewService(Options{Queue: q, Pipeline: pipeline, MaxConcurrency: 2})

	ctx, cancel := context.WithCancel(context.Background())

	result := make(chan error, 1)
	go func() {
		result <- svc.Run(ctx)
	}()

	require.True(t, q.Add(&model.Message{ID: "1", ChatID: "-1", Text: "hi"}))
	require.Eventually(t, func() bool {
		return pipeline.running.Load() == 1
	}, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Equal(t, int32(1), pipeline.done.Load())
}

func TestRunPrunesIdleChats(t *testing.T) {
	q := queue.NewQueue(4)
	tracker := interest.NewTracker(10, time.Minute)
	tracker.Track("-1", interest.MessageRecord{UserID: "7", Content: "hi", Timestamp: time.Now()})

	svc := NewService(Options{
		Queue:         q,
		Pipeline:      &recordingPipeline{},
		Tracker:       tracker,
		IdleTTL:       time.Nanosecond,
		PruneInterval: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- svc.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return tracker.Len() == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-result)
}
