package rowstream

// outcome carries the resolution of a single suspended call
type outcome struct {
	rec Record
	end bool
	err error
}

// waiter is the single-slot bridge between a blocked sequential call and the session
// event that resolves it
//
// at most one waiter exists per Reader/Writer instance at any time - a second concurrent
// call on the same instance fails with ErrConcurrentCall rather than overwriting the slot
type waiter struct {
	ch chan outcome
}

func newWaiter() *waiter {
	return &waiter{ch: make(chan outcome, 1)}
}

func (w *waiter) resolve(rec Record) {
	w.ch <- outcome{rec: rec}
}

func (w *waiter) resolveEnd() {
	w.ch <- outcome{end: true}
}

func (w *waiter) resolveErr(err error) {
	w.ch <- outcome{err: err}
}
