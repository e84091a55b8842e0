// Package progress defines the progress callback used by the parser and the
// metrics aggregator, plus adapters for the hosts that surface it.
package progress

import "sync"

// Func receives a progress value in [0,100] and a human-readable message.
// Implementations are invoked synchronously from whichever goroutine runs
// the parse or analysis.
type Func func(progress int, message string)

// Nop discards progress updates.
func Nop(int, string) {}

// OrNop returns fn, or Nop when fn is nil.
func OrNop(fn Func) Func {
	if fn == nil {
		return Nop
	}
	return fn
}

// Monotonic wraps fn so it only ever sees values clamped to [0,100] that never
// decrease. The internal lock is released before fn runs.
func Monotonic(fn Func) Func {
	fn = OrNop(fn)
	var (
		mu   sync.Mutex
		last int
	)
	return func(p int, msg string) {
		if p < 0 {
			p = 0
		}
		if p > 100 {
			p = 100
		}
		mu.Lock()
		if p < last {
			p = last
		}
		last = p
		mu.Unlock()

		fn(p, msg)
	}
}

// Scale maps a full 0-100 progress stream onto the sub-range [lo, hi] of fn.
// Used to chain the parse and analysis phases into one stream.
func Scale(fn Func, lo, hi int) Func {
	fn = OrNop(fn)
	return func(p int, msg string) {
		fn(lo+(hi-lo)*p/100, msg)
	}
}

// Event is one progress update as delivered to asynchronous consumers.
type Event struct {
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// ToChannel returns a Func that forwards updates to ch for hosts that run the
// parse on a worker goroutine and poll for updates. Intermediate updates are
// dropped when ch is full so the parse never waits on the consumer; the final
// update at 100 is always delivered.
func ToChannel(ch chan<- Event) Func {
	return func(p int, msg string) {
		ev := Event{Progress: p, Message: msg}
		if p >= 100 {
			ch <- ev
			return
		}
		select {
		case ch <- ev:
		default:
		}
	}
}
