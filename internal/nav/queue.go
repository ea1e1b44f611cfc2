package nav

import "context"

// FixQueue carries fixes from a location source to the goroutine running
// an Engine. It holds at most its capacity; when full the oldest fix is
// dropped so the engine always works on recent positions.
type FixQueue struct {
	ch chan Fix
}

func NewFixQueue(size int) *FixQueue {
	if size < 1 {
		size = 1
	}
	return &FixQueue{ch: make(chan Fix, size)}
}

// Push adds f and returns the number of older fixes dropped to make room.
// It never blocks.
func (q *FixQueue) Push(f Fix) (dropped int) {
	for {
		select {
		case q.ch <- f:
			return dropped
		default:
		}
		select {
		case <-q.ch:
			dropped++
		default:
		}
	}
}

// Pop waits for the next fix. It returns false when ctx is done.
func (q *FixQueue) Pop(ctx context.Context) (Fix, bool) {
	select {
	case f := <-q.ch:
		return f, true
	case <-ctx.Done():
		return Fix{}, false
	}
}

func (q *FixQueue) Len() int { return len(q.ch) }
