package engine

// Window is the dedup window: a fixed-capacity FIFO of recently
// dispatched keys. A key inside the window is never re-dispatched.
// Owned by the dispatcher goroutine, no locking.
type Window struct {
	capacity int
	fifo     []string
	member   map[string]struct{}
}

func NewWindow(capacity int) *Window {
	return &Window{
		capacity: capacity,
		member:   make(map[string]struct{}, capacity),
	}
}

func (w *Window) Contains(key string) bool {
	_, ok := w.member[key]
	return ok
}

// Push records a dispatched key, evicting the oldest when over capacity.
func (w *Window) Push(key string) {
	if w.Contains(key) {
		return
	}
	w.fifo = append(w.fifo, key)
	w.member[key] = struct{}{}

	if len(w.fifo) > w.capacity {
		oldest := w.fifo[0]
		w.fifo = w.fifo[1:]
		delete(w.member, oldest)
	}
}

// Remove drops a key early, used when its cache entry naturally expires
// so the token becomes eligible for redispatch right away.
func (w *Window) Remove(key string) {
	if !w.Contains(key) {
		return
	}
	delete(w.member, key)
	for i, k := range w.fifo {
		if k == key {
			w.fifo = append(w.fifo[:i], w.fifo[i+1:]...)
			break
		}
	}
}

func (w *Window) Len() int {
	return len(w.fifo)
}
