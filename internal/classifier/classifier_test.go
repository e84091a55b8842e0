package classifier

import (
	"testing"
	"time"

	"pairing_analyzer/internal/pairing"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 1, day, hour, minute, 0, 0, time.UTC)
}

func duty(start, end time.Time) pairing.DutyDay {
	return pairing.DutyDay{Report: start, Release: end, Legs: []pairing.Leg{{Departure: start, Arrival: end}}}
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in      string
		want    Window
		wantErr bool
	}{
		{"02:30-05:00", Window{150, 300}, false},
		{"0230-0500", Window{150, 300}, false},
		{"22:00-04:00", Window{1320, 240}, false},
		{"02:30", Window{}, true},
		{"25:00-05:00", Window{}, true},
		{"02:30-02:30", Window{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWindow(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseWindow(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}

	if s := DefaultWindow.String(); s != "02:30-05:00" {
		t.Errorf("String = %q", s)
	}
}

func TestTouchesWindow(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		d    pairing.DutyDay
		want bool
	}{
		{"covers window", duty(at(1, 1, 0), at(1, 6, 0)), true},
		{"inside window", duty(at(1, 3, 0), at(1, 4, 0)), true},
		{"ends at window start", duty(at(1, 0, 0), at(1, 2, 30)), true},
		{"starts at window end", duty(at(1, 5, 0), at(1, 9, 0)), true},
		{"ends before window", duty(at(1, 0, 0), at(1, 2, 29)), false},
		{"daytime", duty(at(1, 8, 0), at(1, 17, 0)), false},
		{"spans midnight into window", duty(at(1, 22, 0), at(2, 3, 0)), true},
		{"spans midnight before window", duty(at(1, 22, 0), at(2, 1, 0)), false},
		{"evening to next morning", duty(at(1, 18, 0), at(2, 8, 0)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TouchesWindow(tt.d, cfg); got != tt.want {
				t.Errorf("TouchesWindow = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTouchesWindowUsesLocalTime(t *testing.T) {
	pst := pairing.Zone(-8 * 60)
	// 03:00-04:00 local is 11:00-12:00 UTC.
	d := duty(time.Date(2026, 1, 1, 3, 0, 0, 0, pst), time.Date(2026, 1, 1, 4, 0, 0, 0, pst))
	if !TouchesWindow(d, DefaultConfig()) {
		t.Error("local 03:00-04:00 should touch the window")
	}

	d = duty(time.Date(2026, 1, 1, 10, 0, 0, 0, pst), time.Date(2026, 1, 1, 12, 0, 0, 0, pst))
	if TouchesWindow(d, DefaultConfig()) {
		t.Error("local 10:00-12:00 should not touch the window")
	}
}

func TestWrappingWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Window = Window{Start: 23 * 60, End: 60}

	if !TouchesWindow(duty(at(1, 0, 15), at(1, 0, 45)), cfg) {
		t.Error("00:15-00:45 should touch 23:00-01:00")
	}
	if !TouchesWindow(duty(at(1, 20, 0), at(1, 23, 30)), cfg) {
		t.Error("20:00-23:30 should touch 23:00-01:00")
	}
	if TouchesWindow(duty(at(1, 2, 0), at(1, 20, 0)), cfg) {
		t.Error("02:00-20:00 should not touch 23:00-01:00")
	}
}

func TestHotStandbyDutyDay(t *testing.T) {
	inWindow := pairing.DutyDay{HotStandby: true, Reserve: &pairing.Period{Start: at(1, 3, 0), End: at(1, 9, 0)}}
	outside := pairing.DutyDay{HotStandby: true, Reserve: &pairing.Period{Start: at(1, 10, 0), End: at(1, 18, 0)}}
	noBounds := pairing.DutyDay{HotStandby: true}

	cfg := DefaultConfig()
	if !TouchesWindow(inWindow, cfg) {
		t.Error("reserve 03:00-09:00 should touch")
	}
	if TouchesWindow(outside, cfg) {
		t.Error("reserve 10:00-18:00 should not touch")
	}
	if TouchesWindow(noBounds, cfg) {
		t.Error("no bounds should default to false")
	}

	cfg.HotStandbyDefault = true
	if !TouchesWindow(noBounds, cfg) {
		t.Error("no bounds should follow HotStandbyDefault=true")
	}

	cfg.UseReserveBounds = false
	cfg.HotStandbyDefault = false
	if TouchesWindow(inWindow, cfg) {
		t.Error("reserve bounds ignored when UseReserveBounds=false")
	}
}

func TestClassify(t *testing.T) {
	src := []pairing.Pairing{
		{ID: "A", Frequency: 3, DutyDays: []pairing.DutyDay{duty(at(1, 1, 0), at(1, 6, 0))}},
		{ID: "B", Frequency: 1, DutyDays: []pairing.DutyDay{
			duty(at(1, 8, 0), at(1, 16, 0)),
			duty(at(2, 8, 0), at(2, 16, 0)),
		}},
		{ID: "H", Frequency: 2, IsHotStandby: true, Reserve: &pairing.Period{Start: at(1, 2, 0), End: at(1, 10, 0)}},
	}

	out := Classify(src, DefaultConfig())

	if !out[0].IsEDW || !out[0].DutyDays[0].TouchesEDW {
		t.Error("A should be EDW")
	}
	if out[1].IsEDW || out[1].EDWDutyDays() != 0 {
		t.Error("B should not be EDW")
	}
	if out[2].IsEDW {
		t.Error("hot standby pairing should not be EDW")
	}

	if src[0].IsEDW || src[0].DutyDays[0].TouchesEDW {
		t.Error("Classify modified its input")
	}
}
