package progress

import (
	"encoding/json"
	"errors"
	"testing"
)

type recorder struct {
	values   []int
	messages []string
}

func (r *recorder) fn(p int, msg string) {
	r.values = append(r.values, p)
	r.messages = append(r.messages, msg)
}

func TestMonotonic(t *testing.T) {
	rec := &recorder{}
	fn := Monotonic(rec.fn)

	for _, p := range []int{-5, 10, 40, 30, 120, 50} {
		fn(p, "step")
	}

	want := []int{0, 10, 40, 40, 100, 100}
	if len(rec.values) != len(want) {
		t.Fatalf("got %d calls, want %d", len(rec.values), len(want))
	}
	for i := range want {
		if rec.values[i] != want[i] {
			t.Errorf("call %d = %d, want %d", i, rec.values[i], want[i])
		}
	}
}

func TestMonotonicNilIsSafe(t *testing.T) {
	Monotonic(nil)(50, "no consumer")
}

func TestScale(t *testing.T) {
	rec := &recorder{}
	fn := Scale(rec.fn, 80, 100)
	fn(0, "start")
	fn(50, "half")
	fn(100, "done")

	want := []int{80, 90, 100}
	for i := range want {
		if rec.values[i] != want[i] {
			t.Errorf("call %d = %d, want %d", i, rec.values[i], want[i])
		}
	}
}

func TestToChannelDropsIntermediateButKeepsFinal(t *testing.T) {
	ch := make(chan Event, 1)
	fn := ToChannel(ch)

	fn(10, "first")
	fn(20, "dropped")

	if ev := <-ch; ev.Progress != 10 {
		t.Errorf("first event = %d, want 10", ev.Progress)
	}

	done := make(chan struct{})
	go func() {
		fn(100, "finished")
		close(done)
	}()

	ev := <-ch
	<-done
	if ev.Progress != 100 || ev.Message != "finished" {
		t.Errorf("final event = %+v, want 100/finished", ev)
	}
}

type fakePublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return f.err
}

func TestNATSReporter(t *testing.T) {
	pub := &fakePublisher{}
	r := NewNATSReporter(pub, "")

	fn := r.Reporter("abc", nil)
	fn(42, "Processed page 2 of 5")

	if len(pub.subjects) != 1 || pub.subjects[0] != "pairings.progress.abc" {
		t.Fatalf("subjects = %v, want [pairings.progress.abc]", pub.subjects)
	}

	var ev Event
	if err := json.Unmarshal(pub.payloads[0], &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Progress != 42 || ev.Message != "Processed page 2 of 5" {
		t.Errorf("event = %+v", ev)
	}

	if err := r.Close(); err != nil {
		t.Errorf("Close on borrowed publisher: %v", err)
	}
}

func TestNATSReporterErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("no responders")}
	r := NewNATSReporter(pub, "custom")

	var got error
	r.Reporter("x", func(err error) { got = err })(1, "m")
	if got == nil {
		t.Error("expected publish error to reach onErr")
	}
	if pub.subjects[0] != "custom.x" {
		t.Errorf("subject = %q, want custom.x", pub.subjects[0])
	}
}
