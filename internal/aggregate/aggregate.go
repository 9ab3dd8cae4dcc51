// Package aggregate reduces the repeated readings of one sampling interval
// into a single consensus reading.
package aggregate

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/MeKo-Tech/sevseg/internal/classifier"
)

// ErrNoReadings is returned for an empty batch.
var ErrNoReadings = errors.New("aggregate: no readings")

// Reading is one classifier output: a class index per digit position.
type Reading []int

// Summary is the consensus of a batch.
type Summary struct {
	// Digits holds the per-position mode.
	Digits []int
	// ErrorRates holds, per position, the fraction of readings that
	// disagree with the mode.
	ErrorRates []float64
	// FailedRate is the mean of ErrorRates, or 1.0 for the sentinel pattern.
	FailedRate float64
	// Sentinel is set when every position read as the maximum digit.
	Sentinel bool
}

// Aggregate computes per-position modes and disagreement rates. Ties are
// resolved toward the smallest tied value. All readings must have the same
// length.
func Aggregate(readings []Reading) (Summary, error) {
	if len(readings) == 0 {
		return Summary{}, ErrNoReadings
	}
	width := len(readings[0])
	for i, r := range readings {
		if len(r) != width {
			return Summary{}, fmt.Errorf("aggregate: reading %d has %d digits, want %d", i, len(r), width)
		}
	}

	s := Summary{
		Digits:     make([]int, width),
		ErrorRates: make([]float64, width),
	}
	column := make([]int, len(readings))
	for pos := range width {
		for i, r := range readings {
			column[i] = r[pos]
		}
		m, count := mode(column)
		s.Digits[pos] = m
		s.ErrorRates[pos] = float64(len(column)-count) / float64(len(column))
	}

	if width > 0 {
		s.FailedRate = stat.Mean(s.ErrorRates, nil)
	}
	if isSentinel(s.Digits) {
		s.Sentinel = true
		s.FailedRate = 1.0
	}
	return s, nil
}

// mode returns the most frequent value and its count. Candidates are
// scanned in ascending order and the first maximum wins.
func mode(values []int) (int, int) {
	counts := make(map[int]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	uniq := make([]int, 0, len(counts))
	for v := range counts {
		uniq = append(uniq, v)
	}
	sort.Ints(uniq)

	best, bestCount := uniq[0], counts[uniq[0]]
	for _, v := range uniq[1:] {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best, bestCount
}

func isSentinel(digits []int) bool {
	if len(digits) == 0 {
		return false
	}
	for _, d := range digits {
		if d != classifier.MaxDigit {
			return false
		}
	}
	return true
}

// DetectionResult is the per-batch output of the pipeline.
type DetectionResult struct {
	// Value is the parsed reading, nil when no digit was read.
	Value      *int    `json:"value"`
	FailedRate float64 `json:"failed_rate"`
	Timestamp  string  `json:"timestamp"`
}

// TimestampLayout formats live-mode timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// Result converts a summary into a DetectionResult.
func (s Summary) Result(timestamp string) DetectionResult {
	return DetectionResult{
		Value:      classifier.ParseValue(s.Digits),
		FailedRate: s.FailedRate,
		Timestamp:  timestamp,
	}
}

// Failed is the degraded result for a batch that produced no readings.
func Failed(timestamp string) DetectionResult {
	return DetectionResult{Value: nil, FailedRate: 1.0, Timestamp: timestamp}
}

// Reduce aggregates readings into a result; an empty batch yields Failed.
func Reduce(readings []Reading, timestamp string) DetectionResult {
	s, err := Aggregate(readings)
	if err != nil {
		return Failed(timestamp)
	}
	return s.Result(timestamp)
}

// LiveTimestamp formats wall-clock time for live results.
func LiveTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// OffsetTimestamp formats a position within a recording as HH:MM:SS.mmm.
func OffsetTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3_600_000, (ms/60_000)%60, (ms/1000)%60, ms%1000)
}
