package app

import (
	"fmt"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"emgreach/domain/core"
	"emgreach/domain/session"
)

// Summary describes a finished session.
type Summary struct {
	SessionID core.SessionID  `json:"session_id"`
	Name      core.ExportName `json:"name"`
	Location  string          `json:"location,omitempty"`
	Hits      int             `json:"hits"`
	MaxHits   int             `json:"max_hits"`
	Records   int             `json:"records"`

	// TimeToHit is the span of logged ticks per trial index, in trial order.
	TimeToHit       []time.Duration `json:"time_to_hit"`
	MeanTimeToHit   time.Duration   `json:"mean_time_to_hit"`
	MedianTimeToHit time.Duration   `json:"median_time_to_hit"`

	SignalMean   float64 `json:"signal_mean"`
	SignalMedian float64 `json:"signal_median"`
	SignalStdDev float64 `json:"signal_stddev"`
}

func (s *Summary) String() string {
	return fmt.Sprintf("%d/%d hits, %d records, mean time-to-hit %s, signal mean %.3f median %.3f sd %.3f",
		s.Hits, s.MaxHits, s.Records, s.MeanTimeToHit, s.SignalMean, s.SignalMedian, s.SignalStdDev)
}

// BuildSummary derives the session statistics from the log.
func BuildSummary(sess *Session, name core.ExportName) *Summary {
	records := sess.Log.Records()
	summary := SummarizeRecords(records)
	summary.SessionID = sess.ID
	summary.Name = name
	summary.Location = sess.Location
	summary.Hits = sess.Machine.Hits()
	summary.MaxHits = sess.Machine.MaxHits()
	return summary
}

// SummarizeRecords computes the record-derived statistics. Empty input leaves
// every statistic at zero.
func SummarizeRecords(records []session.Record) *Summary {
	summary := &Summary{Records: len(records)}
	if len(records) == 0 {
		return summary
	}

	signal := make(stats.Float64Data, 0, len(records))
	first := map[int]core.Elapsed{}
	last := map[int]core.Elapsed{}
	for _, r := range records {
		signal = append(signal, r.SignalStrength)
		if _, ok := first[r.Trial]; !ok {
			first[r.Trial] = r.Elapsed
		}
		last[r.Trial] = r.Elapsed
	}

	summary.SignalMean, _ = stats.Mean(signal)
	summary.SignalMedian, _ = stats.Median(signal)
	summary.SignalStdDev, _ = stats.StandardDeviation(signal)

	trials := make([]int, 0, len(first))
	for t := range first {
		trials = append(trials, t)
	}
	sort.Ints(trials)

	spans := make(stats.Float64Data, 0, len(trials))
	for _, t := range trials {
		d := last[t].Duration() - first[t].Duration()
		summary.TimeToHit = append(summary.TimeToHit, d)
		spans = append(spans, float64(d))
	}
	mean, _ := stats.Mean(spans)
	median, _ := stats.Median(spans)
	summary.MeanTimeToHit = time.Duration(mean)
	summary.MedianTimeToHit = time.Duration(median)
	return summary
}
