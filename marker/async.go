package marker

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueFull is reported when an async sink drops a marker.
	ErrQueueFull = errors.New("marker: async queue full")

	// ErrSinkClosed is reported by Send after Shutdown.
	ErrSinkClosed = errors.New("marker: async sink shut down")
)

type pending struct {
	code Code
	at   time.Duration
}

type asyncSink struct {
	sink  Sink
	queue chan pending

	// receives delivery errors of the wrapped sink
	onError func(error)

	wg sync.WaitGroup

	// guards closed and the queue close against concurrent Send
	mu     sync.Mutex
	closed bool
}

// Async moves delivery to sink onto its own goroutine. Send only enqueues and
// fails with ErrQueueFull instead of blocking. Errors of the wrapped sink are
// passed to onError, which may be nil.
func Async(sink Sink, buffer int, onError func(error)) Sink {
	if buffer <= 0 {
		buffer = 1
	}

	return &asyncSink{
		sink:    sink,
		queue:   make(chan pending, buffer),
		onError: onError,
	}
}

func (a *asyncSink) Init() error {
	if err := a.sink.Init(); err != nil {
		return err
	}

	a.wg.Add(1)
	go a.loop()
	return nil
}

func (a *asyncSink) loop() {
	defer a.wg.Done()

	for p := range a.queue {
		if err := a.sink.Send(p.code, p.at); err != nil && a.onError != nil {
			a.onError(err)
		}
	}
}

func (a *asyncSink) Send(code Code, at time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrSinkClosed
	}
	select {
	case a.queue <- pending{code: code, at: at}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown drains what is queued, then shuts the wrapped sink down.
func (a *asyncSink) Shutdown() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	a.wg.Wait()
	return a.sink.Shutdown()
}
