package application

import "sync"

// listenerList is an ordered list of callbacks. Callbacks are invoked in
// registration order and removed only through the func returned by add.
type listenerList[T any] struct {
	mu      sync.Mutex
	nextID  uint64
	entries []listenerEntry[T]
}

type listenerEntry[T any] struct {
	id uint64
	fn func(T)
}

func (l *listenerList[T]) add(fn func(T)) func() {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.entries = append(l.entries, listenerEntry[T]{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { l.remove(id) })
	}
}

func (l *listenerList[T]) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e.id == id {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return
		}
	}
}

// emit calls every listener registered at the time of the call. It never
// holds the list lock while a listener runs.
func (l *listenerList[T]) emit(v T) int {
	l.mu.Lock()
	fns := make([]func(T), len(l.entries))
	for i, e := range l.entries {
		fns[i] = e.fn
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
	return len(fns)
}

func (l *listenerList[T]) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
