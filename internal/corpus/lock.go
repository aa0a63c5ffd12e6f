package corpus

import "sync/atomic"

// loadLock is a non-blocking mutex: a second load fails fast instead of
// queueing behind the first.
type loadLock struct {
	state atomic.Int32 // 0 = idle, 1 = loading
}

func (l *loadLock) tryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

func (l *loadLock) release() {
	l.state.Store(0)
}

func (l *loadLock) held() bool {
	return l.state.Load() == 1
}
