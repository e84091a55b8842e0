package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"pairing_analyzer/internal/pairing"
	"pairing_analyzer/internal/parser"
	"pairing_analyzer/internal/pipeline"
	"pairing_analyzer/internal/storage"
)

func pct(f float64) string {
	return humanize.FtoaWithDigits(f*100, 1) + "%"
}

func count(n int) string {
	return humanize.Comma(int64(n))
}

func printReport(w io.Writer, res *pipeline.Result, width float64) {
	h, m := res.Header, res.Metrics

	fmt.Fprintf(w, "%s %s bid period %s", h.Base, h.Fleet, h.BidPeriod)
	if res.Source != "" {
		fmt.Fprintf(w, " (%s)", res.Source)
	}
	fmt.Fprintln(w)
	if !h.ValidFrom.IsZero() {
		fmt.Fprintf(w, "valid %s to %s\n", h.ValidFrom.Format("2006-01-02"), h.ValidTo.Format("2006-01-02"))
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "pairings\t%s\t(%s EDW)\n", count(m.UniquePairings), count(m.UniqueEDW))
	fmt.Fprintf(tw, "trips\t%s\t\n", count(m.TotalTrips))
	fmt.Fprintf(tw, "  EDW\t%s\t\n", count(m.EDWTrips))
	fmt.Fprintf(tw, "  day\t%s\t\n", count(m.DayTrips))
	fmt.Fprintf(tw, "  hot standby\t%s\t\n", count(m.HotStandbyTrips))
	fmt.Fprintf(tw, "trip-weighted EDW\t%s\t\n", pct(m.TripWeightedEDW))
	fmt.Fprintf(tw, "TAFB-weighted EDW\t%s\t(%sh of %sh)\n", pct(m.TAFBWeightedEDW),
		humanize.FtoaWithDigits(m.EDWTAFBHours, 1), humanize.FtoaWithDigits(m.TotalTAFBHours, 1))
	fmt.Fprintf(tw, "duty-day-weighted EDW\t%s\t(%s of %s)\n", pct(m.DutyDayWeightedEDW),
		count(m.EDWDutyDays), count(m.TotalDutyDays))
	_ = tw.Flush()

	buckets := m.Distribution(width, false)
	if len(buckets) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "duty length (trip-weighted duty days)")
		peak := 0
		for _, b := range buckets {
			peak = max(peak, b.Count)
		}
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		for _, b := range buckets {
			bar := 0
			if peak > 0 {
				bar = b.Count * 40 / peak
			}
			fmt.Fprintf(tw, "%s\t%s\t %s\n", b.Label(), count(b.Count), strings.Repeat("#", bar))
		}
		_ = tw.Flush()
	}

	if len(res.Warnings) > 0 {
		fmt.Fprintf(w, "\n%s warnings:\n", count(len(res.Warnings)))
		for _, wn := range res.Warnings {
			fmt.Fprintf(w, "  %s\n", wn)
		}
	}
}

func tag(b bool, s string) string {
	if b {
		return s
	}
	return ""
}

func printPairings(w io.Writer, ps []pairing.Pairing, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFREQ\tDAYS\tMAX DUTY\tMAX LEGS\tTAFB\tFLAGS")
	trips := 0
	for _, p := range ps {
		trips += p.Frequency
		flags := strings.TrimSpace(tag(p.IsEDW, "EDW") + " " + tag(p.IsHotStandby, "HSBY"))
		fmt.Fprintf(tw, "%s\t%d\t%d\t%sh\t%d\t%sh\t%s\n", p.ID, p.Frequency, len(p.DutyDays),
			humanize.FtoaWithDigits(p.MaxDutyHours(), 2), p.MaxLegs(),
			humanize.FtoaWithDigits(p.TAFBHours(), 2), flags)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%s of %s pairings matched, %s trips\n", count(len(ps)), count(total), count(trips))
}

func printTrace(w io.Writer, traces []parser.LineTrace, only string) {
	only = strings.ToLower(only)
	for _, t := range traces {
		if only != "" && t.Kind != only {
			continue
		}
		blank := " "
		if t.AfterBlank {
			blank = "^"
		}
		fmt.Fprintf(w, "%5d %s %-11s %s\n", t.Line, blank, t.Kind, t.Text)

		if len(t.Captures) > 0 {
			keys := make([]string, 0, len(t.Captures))
			for k := range t.Captures {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			parts := make([]string, 0, len(keys))
			for _, k := range keys {
				if v := t.Captures[k]; v != "" {
					parts = append(parts, k+"="+v)
				}
			}
			fmt.Fprintf(w, "%20s%s\n", "", strings.Join(parts, " "))
		}
		if t.Formats != nil {
			for _, f := range t.Formats.Formats {
				mark := "-"
				if f.Matched {
					mark = "+"
				}
				fmt.Fprintf(w, "%20s%s %s\n", "", mark, f.Name)
			}
		}
	}
}

func printSummaries(w io.Writer, list []storage.AnalysisSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tBASE\tFLEET\tPERIOD\tPAIRINGS\tTRIPS\tEDW\tSTORED")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.Base, s.Fleet, s.BidPeriod,
			count(s.Pairings), count(s.TotalTrips), pct(s.TripWeightedEDW), humanize.Time(s.CreatedAt))
	}
	_ = tw.Flush()
}

func printStats(w io.Writer, stats *storage.Stats) {
	fmt.Fprintf(w, "analyses: %s\n", count(stats.TotalAnalyses))
	edw := 0.0
	if stats.TotalTrips > 0 {
		edw = float64(stats.EDWTrips) / float64(stats.TotalTrips)
	}
	fmt.Fprintf(w, "trips:    %s (%s EDW)\n", count(stats.TotalTrips), pct(edw))

	for _, group := range []struct {
		name   string
		counts map[string]int
	}{{"by fleet", stats.ByFleet}, {"by base", stats.ByBase}} {
		fmt.Fprintf(w, "\n%s:\n", group.name)
		keys := make([]string, 0, len(group.counts))
		for k := range group.counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %-8s %s\n", k, count(group.counts[k]))
		}
	}
}
