package header

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestExtract(t *testing.T) {
	text := `ONT 757 BID PERIOD 2601                      PAGE 1
   base:   ONT
FLEET: 757
Bid Period: 2601
VALID 01/01/26 - 01/31/2026
DATE GENERATED: 15DEC25
TIME ZONE: UTC-08:00

TRIP ID: O8001  FREQ: 3
`

	h, err := Extract(text)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if h.Base != "ONT" {
		t.Errorf("Base = %q, want %q", h.Base, "ONT")
	}
	if h.Fleet != "757" {
		t.Errorf("Fleet = %q, want %q", h.Fleet, "757")
	}
	if h.BidPeriod != "2601" {
		t.Errorf("BidPeriod = %q, want %q", h.BidPeriod, "2601")
	}
	if want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC); !h.ValidFrom.Equal(want) {
		t.Errorf("ValidFrom = %v, want %v", h.ValidFrom, want)
	}
	if want := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC); !h.ValidTo.Equal(want) {
		t.Errorf("ValidTo = %v, want %v", h.ValidTo, want)
	}
	if want := time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC); !h.Generated.Equal(want) {
		t.Errorf("Generated = %v, want %v", h.Generated, want)
	}
	if h.UTCOffset != -480 || !h.HasOffset {
		t.Errorf("UTCOffset = %d (has=%v), want -480", h.UTCOffset, h.HasOffset)
	}
}

func TestExtractAlternateLabels(t *testing.T) {
	text := "DOMICILE - SFO\r\nEQUIPMENT 75E\r\nBIDPERIOD JAN26\r\nEFFECTIVE 01JAN2026 THRU 31JAN2026\r\n"

	h, err := Extract(text)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if h.Base != "SFO" || h.Fleet != "75E" || h.BidPeriod != "JAN26" {
		t.Errorf("got base=%q fleet=%q bid=%q", h.Base, h.Fleet, h.BidPeriod)
	}

	for _, label := range []string{"FLEET TYPE: 757", "EQUIPMENT TYPE 757", "AIRCRAFT TYPE: 757"} {
		h, err := Extract(label + "\nBASE: ONT\nBID PERIOD: 2601\n")
		if err != nil {
			t.Fatalf("Extract(%q): %v", label, err)
		}
		if h.Fleet != "757" {
			t.Errorf("%q: Fleet = %q, want 757", label, h.Fleet)
		}
	}
	if h.ValidTo.Day() != 31 {
		t.Errorf("ValidTo = %v, want Jan 31", h.ValidTo)
	}
	if h.HasOffset {
		t.Error("HasOffset = true, want false")
	}
}

func TestExtractMissingFields(t *testing.T) {
	_, err := Extract("FLEET: 757\nGENERATED 12/15/2025\n")

	var mhe *MalformedHeaderError
	if !errors.As(err, &mhe) {
		t.Fatalf("expected *MalformedHeaderError, got %v", err)
	}
	if strings.Join(mhe.Missing, ",") != "base,bid_period" {
		t.Errorf("Missing = %v, want [base bid_period]", mhe.Missing)
	}
	if !strings.Contains(err.Error(), "base") {
		t.Errorf("Error() = %q, should name the missing field", err.Error())
	}
}

func TestExtractIgnoresLabelsOutsideRegion(t *testing.T) {
	var b strings.Builder
	b.WriteString("FLEET: 757\nBID PERIOD: 2601\n")
	for i := 0; i < RegionLines; i++ {
		b.WriteString("LEGEND LINE\n")
	}
	b.WriteString("BASE: ONT\n")

	_, err := Extract(b.String())
	var mhe *MalformedHeaderError
	if !errors.As(err, &mhe) {
		t.Fatalf("expected *MalformedHeaderError, got %v", err)
	}
}
