package sender

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeMessenger struct {
	mu    sync.Mutex
	sent  []Message
	fail  map[string]bool
	block chan struct{}
}

func (f *fakeMessenger) Send(ctx context.Context, m Message) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[m.To] {
		return errors.New("chat not found")
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeMessenger) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		out = append(out, m.To)
	}
	return out
}

func next(t *testing.T, w *Worker) Event {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestWorker_SendsInOrderAndDrains(t *testing.T) {
	m := &fakeMessenger{fail: map[string]bool{"bad": true}}
	w := NewWorker(m, time.Millisecond, 2*time.Millisecond, nil)
	w.Start(context.Background())
	defer w.Stop()

	queued, err := w.Enqueue(Message{To: "1", Text: "hi"}, Message{To: "bad", Text: "hi"}, Message{To: "3", Text: "hi"})
	require.NoError(t, err)
	require.Len(t, queued, 3)
	assert.NotEmpty(t, queued[0].ID)

	ev := next(t, w)
	assert.Equal(t, EventSent, ev.Kind)
	assert.Equal(t, queued[0].ID, ev.MessageID)

	ev = next(t, w)
	assert.Equal(t, EventFailed, ev.Kind)
	assert.Equal(t, "chat not found", ev.Error)

	ev = next(t, w)
	assert.Equal(t, EventSent, ev.Kind)
	assert.Equal(t, 0, ev.Queued)

	assert.Equal(t, EventDrained, next(t, w).Kind)
	assert.Equal(t, []string{"1", "3"}, m.recipients())

	st := w.Status()
	assert.Equal(t, Status{Running: true, Sent: 2, Failed: 1}, st)
}

func TestWorker_PauseAndResume(t *testing.T) {
	m := &fakeMessenger{}
	w := NewWorker(m, time.Millisecond, time.Millisecond, nil)
	w.Start(context.Background())
	defer w.Stop()

	require.NoError(t, w.Pause())
	assert.Equal(t, EventPaused, next(t, w).Kind)

	_, err := w.Enqueue(Message{To: "1"}, Message{To: "2"})
	require.NoError(t, err)

	st := w.Status()
	assert.True(t, st.Paused)
	assert.Equal(t, 2, st.Queued)
	assert.Empty(t, m.recipients())

	require.NoError(t, w.Resume())
	assert.Equal(t, EventResumed, next(t, w).Kind)
	assert.Equal(t, EventSent, next(t, w).Kind)
	assert.Equal(t, EventSent, next(t, w).Kind)
	assert.Equal(t, EventDrained, next(t, w).Kind)
}

func TestWorker_DelayBetweenSends(t *testing.T) {
	m := &fakeMessenger{}
	w := NewWorker(m, 80*time.Millisecond, 80*time.Millisecond, nil)
	w.Start(context.Background())
	defer w.Stop()

	_, err := w.Enqueue(Message{To: "1"}, Message{To: "2"})
	require.NoError(t, err)

	first := next(t, w)
	second := next(t, w)
	require.Equal(t, EventSent, second.Kind)
	assert.GreaterOrEqual(t, second.At.Sub(first.At), 70*time.Millisecond)
}

func TestWorker_StopDropsQueueAndClosesEvents(t *testing.T) {
	m := &fakeMessenger{block: make(chan struct{})}
	w := NewWorker(m, time.Millisecond, time.Millisecond, nil)
	w.Start(context.Background())

	_, err := w.Enqueue(Message{To: "1"}, Message{To: "2"})
	require.NoError(t, err)

	w.Stop()
	w.Stop()

	ev := next(t, w)
	assert.Equal(t, EventStopped, ev.Kind)
	_, ok := <-w.Events()
	assert.False(t, ok)

	_, err = w.Enqueue(Message{To: "3"})
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, w.Pause(), ErrStopped)
	assert.Equal(t, Status{}, w.Status())
}

func TestRandomDelay_StaysInRange(t *testing.T) {
	d := randomDelay(3*time.Second, 7*time.Second)
	for i := 0; i < 200; i++ {
		v := d()
		assert.GreaterOrEqual(t, v, 3*time.Second)
		assert.LessOrEqual(t, v, 7*time.Second)
	}
	assert.Equal(t, time.Second, randomDelay(time.Second, time.Second)())
}
