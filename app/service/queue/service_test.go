package queue

import (
	"testing"

	"tgbridge/app/model"

	"github.com/stretchr/testify/assert"
)

func TestAddAndReceive(t *testing.T) {
	q := NewQueue(2)

	assert.True(t, q.Add(&model.Message{ID: "1"}))
	assert.True(t, q.Add(&model.Message{ID: "2"}))
	assert.Equal(t, 2, q.Len())

	first := <-q.Channel()
	second := <-q.Channel()
	assert.Equal(t, "1", first.ID)
	assert.Equal(t, "2", second.ID)
}

func TestAddDropsWhenFull(t *testing.T) {
	q := NewQueue(1)

	assert.True(t, q.Add(&model.Message{ID: "1"}))
	assert.False(t, q.Add(&model.Message{ID: "2"}))
	assert.Equal(t, int64(1), q.Dropped())
}

func TestAddAfterShutdown(t *testing.T) {
	q := NewQueue(1)
	assert.NoError(t, q.Shutdown())

	assert.False(t, q.Add(&model.Message{ID: "1"}))

	_, ok := <-q.Channel()
	assert.False(t, ok)
}
