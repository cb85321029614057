package channels

import "sync"

// sessionQueue runs submitted work for one session in arrival order, one item
// at a time. Different sessions drain concurrently, each on its own goroutine
// that exits once its queue is empty.
type sessionQueue struct {
	mu      sync.Mutex
	pending map[string][]func()
	wg      sync.WaitGroup
}

func newSessionQueue() *sessionQueue {
	return &sessionQueue{pending: make(map[string][]func())}
}

// Submit appends fn to the session's queue, starting a worker if none is running.
func (q *sessionQueue) Submit(session string, fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	queued, running := q.pending[session]
	q.pending[session] = append(queued, fn)
	if running {
		return
	}
	q.wg.Add(1)
	go q.drain(session)
}

func (q *sessionQueue) drain(session string) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		queued := q.pending[session]
		if len(queued) == 0 {
			delete(q.pending, session)
			q.mu.Unlock()
			return
		}
		fn := queued[0]
		q.pending[session] = queued[1:]
		q.mu.Unlock()

		fn()
	}
}

// Wait blocks until every submitted item has run.
func (q *sessionQueue) Wait() {
	q.wg.Wait()
}
