package storage

import "sync"

// Watchers is the per-key callback registry shared by the KV drivers.
type Watchers struct {
	mu   sync.Mutex
	next int
	fns  map[string]map[int]func()
}

func (w *Watchers) Add(key string, fn func()) func() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fns == nil {
		w.fns = make(map[string]map[int]func())
	}
	if w.fns[key] == nil {
		w.fns[key] = make(map[int]func())
	}
	id := w.next
	w.next++
	w.fns[key][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			delete(w.fns[key], id)
		})
	}
}

// Notify runs the callbacks for key outside the registry lock.
func (w *Watchers) Notify(key string) {
	w.mu.Lock()
	fns := make([]func(), 0, len(w.fns[key]))
	for _, fn := range w.fns[key] {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
