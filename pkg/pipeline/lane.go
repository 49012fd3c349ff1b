package pipeline

import (
	"log/slog"
	"sync"
)

// Task is a unit of work run on a Lane.
type Task func()

// Resume re-enters the lane with a continuation. Only the first call has an
// effect; a nil task just releases the reservation.
type Resume func(Task)

// Lane runs tasks one at a time, in FIFO order, on a single goroutine.
// Posting never blocks the caller.
type Lane struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Task
	pending  int // continuations reserved by Suspend and not yet resumed
	stopping bool
	exited   bool
	done     chan struct{}
	logger   *slog.Logger
}

// NewLane starts a lane goroutine.
func NewLane(logger *slog.Logger) *Lane {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Lane{
		done:   make(chan struct{}),
		logger: logger,
	}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

// Post enqueues t. It fails with ErrLaneStopped once Stop has been called.
func (l *Lane) Post(t Task) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopping {
		return ErrLaneStopped
	}
	l.queue = append(l.queue, t)
	l.cond.Signal()
	return nil
}

// Suspend reserves a continuation for work that completes off the lane.
// The returned Resume must be called exactly once; Stop waits for it.
// Tasks drained by Stop may still suspend, and Resume is accepted until the
// lane goroutine exits.
func (l *Lane) Suspend() (Resume, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.exited {
		return nil, ErrLaneStopped
	}
	l.pending++

	var once sync.Once
	return func(t Task) {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if t != nil {
				l.queue = append(l.queue, t)
			}
			l.pending--
			l.cond.Signal()
		})
	}, nil
}

// Stop rejects new work, runs every queued task and outstanding continuation,
// and returns once the lane goroutine has exited. Stop must not be called
// from a task running on the lane.
func (l *Lane) Stop() {
	l.mu.Lock()
	l.stopping = true
	l.cond.Broadcast()
	l.mu.Unlock()

	<-l.done
}

// Done is closed when the lane goroutine exits.
func (l *Lane) Done() <-chan struct{} {
	return l.done
}

func (l *Lane) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !(l.stopping && l.pending == 0) {
			l.cond.Wait()
		}
		if len(l.queue) == 0 {
			l.exited = true
			l.mu.Unlock()
			return
		}
		t := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.exec(t)
	}
}

func (l *Lane) exec(t Task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("lane task panicked", "panic", r)
		}
	}()
	t()
}
