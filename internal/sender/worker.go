// Package sender delivers outbound candidate messages one at a time with a
// randomised gap between sends, so bulk campaigns do not look automated to
// the messaging provider.
package sender

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"care-ats/internal/logger"
)

var ErrStopped = errors.New("sender: worker stopped")

// Message is one outbound text.
type Message struct {
	ID   string `json:"id"`
	To   string `json:"to"`
	Text string `json:"text"`
}

// Messenger delivers a single message.
type Messenger interface {
	Send(ctx context.Context, msg Message) error
}

type EventKind string

const (
	EventSent    EventKind = "sent"
	EventFailed  EventKind = "failed"
	EventPaused  EventKind = "paused"
	EventResumed EventKind = "resumed"
	EventDrained EventKind = "drained"
	EventStopped EventKind = "stopped"
)

// Event reports what the worker did.
type Event struct {
	Kind      EventKind `json:"kind"`
	MessageID string    `json:"message_id,omitempty"`
	To        string    `json:"to,omitempty"`
	Error     string    `json:"error,omitempty"`
	Queued    int       `json:"queued"`
	At        time.Time `json:"at"`
}

// Status is a snapshot of the worker.
type Status struct {
	Running bool `json:"running"`
	Paused  bool `json:"paused"`
	Queued  int  `json:"queued"`
	Sent    int  `json:"sent"`
	Failed  int  `json:"failed"`
}

type commandKind int

const (
	cmdEnqueue commandKind = iota
	cmdPause
	cmdResume
	cmdStatus
)

type command struct {
	kind  commandKind
	msgs  []Message
	reply chan Status
}

// Worker owns the send queue. All state lives in the run goroutine and is
// changed only through commands.
type Worker struct {
	messenger Messenger
	delay     func() time.Duration
	log       *logger.Logger

	cmds   chan command
	events chan Event

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewWorker(m Messenger, minDelay, maxDelay time.Duration, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.Discard()
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Worker{
		messenger: m,
		delay:     randomDelay(minDelay, maxDelay),
		log:       log.Component("sender"),
		cmds:      make(chan command),
		events:    make(chan Event, 256),
		done:      make(chan struct{}),
	}
}

func randomDelay(lo, hi time.Duration) func() time.Duration {
	return func() time.Duration {
		if hi <= lo {
			return lo
		}
		return lo + time.Duration(rand.Int64N(int64(hi-lo)+1))
	}
}

// Start launches the worker. It runs until ctx is cancelled or Stop is
// called.
func (w *Worker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		ctx, w.cancel = context.WithCancel(ctx)
		go w.run(ctx)
	})
}

// Events streams what the worker does. The channel is closed after the
// stopped event. Events are dropped when nobody keeps up.
func (w *Worker) Events() <-chan Event {
	return w.events
}

// Enqueue appends messages to the queue and returns them with IDs set.
func (w *Worker) Enqueue(msgs ...Message) ([]Message, error) {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		out[i] = m
	}
	if _, err := w.send(command{kind: cmdEnqueue, msgs: out}); err != nil {
		return nil, err
	}
	return out, nil
}

func (w *Worker) Pause() error {
	_, err := w.send(command{kind: cmdPause})
	return err
}

func (w *Worker) Resume() error {
	_, err := w.send(command{kind: cmdResume})
	return err
}

func (w *Worker) Status() Status {
	st, err := w.send(command{kind: cmdStatus})
	if err != nil {
		return Status{}
	}
	return st
}

// Stop cancels the worker and waits for it to exit. Queued messages are
// dropped.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.Start(context.Background())
		w.cancel()
	})
	<-w.done
}

func (w *Worker) send(c command) (Status, error) {
	c.reply = make(chan Status, 1)
	select {
	case w.cmds <- c:
	case <-w.done:
		return Status{}, ErrStopped
	}
	select {
	case st := <-c.reply:
		return st, nil
	case <-w.done:
		return Status{}, ErrStopped
	}
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	var (
		queue        []Message
		paused       bool
		sent, failed int
		wait         <-chan time.Time
		timer        *time.Timer
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	status := func() Status {
		return Status{Running: true, Paused: paused, Queued: len(queue), Sent: sent, Failed: failed}
	}

	for {
		if len(queue) > 0 && !paused && wait == nil {
			msg := queue[0]
			queue = queue[1:]

			if err := w.messenger.Send(ctx, msg); err != nil {
				if ctx.Err() != nil {
					w.emit(Event{Kind: EventStopped, Queued: len(queue) + 1})
					close(w.events)
					return
				}
				failed++
				w.log.WithField("message_id", msg.ID).WithField("error", err.Error()).Warn("send failed")
				w.emit(Event{Kind: EventFailed, MessageID: msg.ID, To: msg.To, Error: err.Error(), Queued: len(queue)})
			} else {
				sent++
				w.emit(Event{Kind: EventSent, MessageID: msg.ID, To: msg.To, Queued: len(queue)})
			}
			if len(queue) == 0 {
				w.log.WithField("sent", sent).WithField("failed", failed).Info("queue drained")
				w.emit(Event{Kind: EventDrained})
			}

			timer = time.NewTimer(w.delay())
			wait = timer.C
			continue
		}

		select {
		case c := <-w.cmds:
			switch c.kind {
			case cmdEnqueue:
				queue = append(queue, c.msgs...)
				w.log.WithField("added", len(c.msgs)).WithField("queued", len(queue)).Debug("messages queued")
			case cmdPause:
				if !paused {
					paused = true
					w.emit(Event{Kind: EventPaused, Queued: len(queue)})
				}
			case cmdResume:
				if paused {
					paused = false
					w.emit(Event{Kind: EventResumed, Queued: len(queue)})
				}
			}
			c.reply <- status()

		case <-wait:
			wait, timer = nil, nil

		case <-ctx.Done():
			w.log.WithField("dropped", len(queue)).Info("sender stopped")
			w.emit(Event{Kind: EventStopped, Queued: len(queue)})
			close(w.events)
			return
		}
	}
}

func (w *Worker) emit(ev Event) {
	ev.At = time.Now().UTC()
	select {
	case w.events <- ev:
	default:
		w.log.WithField("kind", ev.Kind).Debug("event dropped, channel full")
	}
}
