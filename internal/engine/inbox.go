package engine

import (
	"slices"
	"sync"
)

// inbox is a thread-safe FIFO of commands waiting for the Run loop.
//
// Commands submitted from other goroutines (CLI input, demo feeders) land
// here; Run drains it between timer firings so that every command is still
// applied as its own serialized step.
//
// The signal channel lets Run wait on the inbox and a timer in one select.
type inbox struct {
	mu       sync.Mutex
	commands []Command
	closed   bool
	signal   chan struct{} // buffered, size 1
}

func newInbox() *inbox {
	return &inbox{
		commands: make([]Command, 0, 16),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds cmd to the back of the inbox.
// Returns false if the inbox is closed.
func (q *inbox) Enqueue(cmd Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.commands = append(q.commands, cmd)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes and returns the front command without blocking.
func (q *inbox) TryDequeue() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.commands) == 0 {
		return Command{}, false
	}

	// Shift in place so the backing array never outgrows the peak backlog.
	cmd := q.commands[0]
	q.commands = slices.Delete(q.commands, 0, 1)
	return cmd, true
}

// Wait returns a channel that signals when commands may be available.
// The channel is closed once the inbox is closed.
func (q *inbox) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued commands.
func (q *inbox) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.commands)
}

// Closed reports whether Close has been called.
func (q *inbox) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting commands and wakes any waiter.
func (q *inbox) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
