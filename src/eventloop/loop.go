package eventloop

import (
	"sync"
	"sync/atomic"
	"time"

	"ticker-monitor/src/logger"
)

// -----------------------------------------------------------------------------

// Loop is a single-goroutine executor. Every task posted to it runs to completion
// before the next one starts, so state touched only from tasks needs no locking.
type Loop struct {
	Name   string
	logger *logger.Logger

	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	done    chan struct{}
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// -----------------------------------------------------------------------------

// New creates a stopped loop; call Start before posting work.
func New(name string, logger *logger.Logger) *Loop {
	return &Loop{
		Name:   name,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

// Start launches the executing goroutine. Calling it twice is a no-op.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started || l.stopped {
		return
	}
	l.started = true
	l.wg.Add(1)
	go l.run()
}

// -----------------------------------------------------------------------------

// Stop terminates the loop after the task currently running; queued tasks are dropped.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	l.queue = nil
	close(l.done)
	l.mu.Unlock()

	l.wg.Wait()
}

// -----------------------------------------------------------------------------

// Post enqueues fn without blocking. It returns false once the loop is stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// -----------------------------------------------------------------------------

// Do runs fn on the loop and waits for it. It must not be called from a loop task.
// It returns false if the loop is not running or stopped before fn ran.
func (l *Loop) Do(fn func()) bool {
	l.mu.Lock()
	running := l.started && !l.stopped
	l.mu.Unlock()
	if !running {
		return false
	}

	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}

	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}

// -----------------------------------------------------------------------------

// After schedules fn to run on the loop once d has elapsed.
func (l *Loop) After(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.stopped.Load() {
				return
			}
			fn()
		})
	})
	return t
}

// -----------------------------------------------------------------------------

// Every schedules fn to run on the loop every d until the returned timer is stopped.
func (l *Loop) Every(d time.Duration, fn func()) *Timer {
	t := &Timer{quit: make(chan struct{})}
	ticker := time.NewTicker(d)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Post(func() {
					if t.stopped.Load() {
						return
					}
					fn()
				})
			case <-t.quit:
				return
			case <-l.done:
				return
			}
		}
	}()
	return t
}

// -----------------------------------------------------------------------------

func (l *Loop) run() {
	defer l.wg.Done()

	for {
		l.mu.Lock()
		tasks := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, task := range tasks {
			select {
			case <-l.done:
				return
			default:
			}
			l.execute(task)
		}

		select {
		case <-l.wake:
		case <-l.done:
			return
		}
	}
}

// -----------------------------------------------------------------------------

// execute runs one task, keeping the loop alive if it panics.
func (l *Loop) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("%s : recovered from task panic: %v", l.Name, r)
		}
	}()
	task()
}

// -----------------------------------------------------------------------------

// Timer is a cancellable scheduled continuation.
type Timer struct {
	timer   *time.Timer
	quit    chan struct{}
	stopped atomic.Bool
}

// Stop cancels the timer. A tick already queued on the loop will not run.
func (t *Timer) Stop() {
	if t == nil || !t.stopped.CompareAndSwap(false, true) {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	if t.quit != nil {
		close(t.quit)
	}
}
