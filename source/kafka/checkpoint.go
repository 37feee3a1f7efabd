package kafka

import (
	"sync"
	"sync/atomic"
	"time"
)

// mark is one in-flight offset. When a mark finishes before the one ahead of
// it, the earlier mark absorbs its offset.
type mark struct {
	offset     int64
	prev, next *mark
}

// Tracker follows the in-flight offsets of one partition, handed out in
// increasing order, and reports the highest offset at or below which every
// message has finished.
type Tracker struct {
	mu         sync.Mutex
	head, tail *mark
	done       int64
	pending    int
}

func NewTracker() *Tracker { return &Tracker{done: -1} }

// Track registers offset as in flight. The returned func must be called once
// the message is finished; it reports the new highest finished offset and
// whether it advanced.
func (t *Tracker) Track(offset int64) func() (int64, bool) {
	t.mu.Lock()
	m := &mark{offset: offset, prev: t.tail}
	if t.tail != nil {
		t.tail.next = m
	} else {
		t.head = m
	}
	t.tail = m
	t.pending++
	t.mu.Unlock()

	var once sync.Once
	return func() (highest int64, advanced bool) {
		highest = -1
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			highest, advanced = t.resolve(m)
		})
		if highest < 0 {
			highest = t.Highest()
		}
		return highest, advanced
	}
}

func (t *Tracker) resolve(m *mark) (int64, bool) {
	t.pending--
	advanced := false
	if m.prev != nil {
		m.prev.offset = m.offset
		m.prev.next = m.next
	} else {
		t.done = m.offset
		t.head = m.next
		advanced = true
	}
	if m.next != nil {
		m.next.prev = m.prev
	} else {
		t.tail = m.prev
	}
	return t.done, advanced
}

// Highest is the last offset below which nothing is in flight, or -1.
func (t *Tracker) Highest() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// commitClock decides when marked offsets should be flushed.
type commitClock struct {
	everyNS int64
	lastNS  int64
}

func newCommitClock(every time.Duration) *commitClock {
	return &commitClock{everyNS: every.Nanoseconds()}
}

// due reports whether a commit should happen now, and if so records it.
func (c *commitClock) due() bool {
	now := time.Now().UnixNano()
	last := atomic.LoadInt64(&c.lastNS)
	if last+c.everyNS > now {
		return false
	}
	return atomic.CompareAndSwapInt64(&c.lastNS, last, now)
}
