package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"pairing_analyzer/internal/filter"
	"pairing_analyzer/internal/parser"
	"pairing_analyzer/internal/pipeline"
)

const doc = `BASE: ONT
FLEET: 757
BID PERIOD: 2601

TRIP ID: O8001  FREQ: 1200
DAY 1  RPT 01:00
UA1234 ONT SFO 02:00 03:30
RLS 04:00
TAFB: 03:00

O8002 FREQ 2
DAY 1 RPT 09:00
UA2001 ONT LAX 09:30 09:45
RLS 10:00
TAFB 01:00
`

func TestPrintReport(t *testing.T) {
	res, err := pipeline.Run(context.Background(), doc, pipeline.DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var buf bytes.Buffer
	printReport(&buf, res, 1)
	out := buf.String()

	for _, want := range []string{
		"ONT 757 bid period 2601",
		"1,202",  // total trips
		"99.8%",  // trip-weighted EDW
		"3-4h",   // O8001 duty length bucket
		"1,200 ", // its count
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestPrintPairings(t *testing.T) {
	res, err := pipeline.Run(context.Background(), doc, pipeline.DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var buf bytes.Buffer
	printPairings(&buf, filter.Apply(res.Pairings, filter.Spec{EDW: filter.EDWOnly}), len(res.Pairings))
	out := buf.String()

	if !strings.Contains(out, "O8001") || strings.Contains(out, "O8002") {
		t.Errorf("unexpected pairings:\n%s", out)
	}
	if !strings.Contains(out, "1 of 2 pairings matched, 1,200 trips") {
		t.Errorf("missing footer:\n%s", out)
	}
}

func TestPrintTraceOnly(t *testing.T) {
	traces, err := parser.Trace(doc, false)
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}

	var buf bytes.Buffer
	printTrace(&buf, traces, "LEG")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	// Two leg lines, each followed by its captures.
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "UA1234") || !strings.Contains(lines[2], "UA2001") {
		t.Errorf("unexpected trace:\n%s", buf.String())
	}
}
