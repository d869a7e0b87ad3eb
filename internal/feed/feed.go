// Package feed keeps a bounded list of recent user-facing status lines:
// target changes, mapping applications and device failures. It is not a log;
// diagnostics go through logrus.
package feed

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultCapacity  = 500
	TruncationNotice = "--- older events truncated ---"
)

type Severity int

const (
	Info Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "ERR "
	}
	return "INFO"
}

type Entry struct {
	ID       string    `json:"id"`
	At       time.Time `json:"at"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

// FormatLine renders e as "HH:MM:SS [LVL ] message".
func FormatLine(e Entry) string {
	return fmt.Sprintf("%s [%s] %s", e.At.Format("15:04:05"), e.Severity, e.Message)
}

// Feed is safe for concurrent use. Subscribers never block producers: an
// entry is dropped for a subscriber whose channel is full.
type Feed struct {
	capacity int
	now      func() time.Time

	mu        sync.Mutex
	buf       []Entry
	truncated bool
	lastEmit  map[string]time.Time
	subs      []chan Entry
}

func New(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{
		capacity: capacity,
		now:      time.Now,
		buf:      make([]Entry, 0, 128),
		lastEmit: make(map[string]time.Time),
	}
}

func (f *Feed) Push(sev Severity, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishLocked(f.appendLocked(sev, msg))
}

// PushRateLimited emits msg unless an entry with the same key was emitted
// less than interval ago. It reports whether the entry was emitted.
func (f *Feed) PushRateLimited(key string, interval time.Duration, sev Severity, msg string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	if last, ok := f.lastEmit[key]; ok && now.Sub(last) < interval {
		return false
	}
	f.lastEmit[key] = now
	f.publishLocked(f.appendLocked(sev, msg))
	return true
}

func (f *Feed) appendLocked(sev Severity, msg string) Entry {
	e := Entry{ID: uuid.NewString(), At: f.now(), Severity: sev, Message: msg}
	f.buf = append(f.buf, e)
	if len(f.buf) <= f.capacity {
		return e
	}
	if !f.truncated {
		f.truncated = true
		notice := Entry{ID: uuid.NewString(), At: e.At, Severity: Info, Message: TruncationNotice}
		f.buf = append([]Entry{notice}, f.buf...)
	}
	// The notice stays at the front as one extra line.
	if over := len(f.buf) - (f.capacity + 1); over > 0 {
		f.buf = append(f.buf[:1], f.buf[1+over:]...)
	}
	return e
}

// Snapshot returns a copy of the retained entries, oldest first.
func (f *Feed) Snapshot() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Entry, len(f.buf))
	copy(out, f.buf)
	return out
}

// Last returns the newest entry.
func (f *Feed) Last() (Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.buf) == 0 {
		return Entry{}, false
	}
	return f.buf[len(f.buf)-1], true
}

// Subscribe returns a channel receiving every entry pushed from now on.
func (f *Feed) Subscribe(buffer int) <-chan Entry {
	ch := make(chan Entry, buffer)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	return ch
}

// Close closes every subscriber channel. Pushing after Close is allowed and
// reaches no subscriber.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		close(ch)
	}
	f.subs = nil
}

func (f *Feed) publishLocked(e Entry) {
	for _, ch := range f.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
