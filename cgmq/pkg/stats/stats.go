package stats

import (
	"devicecgm/cgmq/defs"

	"github.com/montanaflynn/stats"
)

func values(ms []defs.Measurement) stats.Float64Data {
	vs := make(stats.Float64Data, len(ms))
	for i, m := range ms {
		vs[i] = m.Value
	}
	return vs
}

// Summarize returns the minimum, maximum and median of the measurements, or
// nil when there are none. With an even count the median is the mean of the
// two middle values.
func Summarize(ms []defs.Measurement) (*defs.StatSummary, error) {
	if len(ms) == 0 {
		return nil, nil
	}
	vs := values(ms)

	min, err := stats.Min(vs)
	if err != nil {
		return nil, err
	}
	max, err := stats.Max(vs)
	if err != nil {
		return nil, err
	}
	median, err := stats.Median(vs)
	if err != nil {
		return nil, err
	}

	return &defs.StatSummary{Min: min, Max: max, Median: median}, nil
}

type RangeAnalysis struct {
	BelowRange float64 `json:"belowRange"`
	InRange    float64 `json:"inRange"`
	AboveRange float64 `json:"aboveRange"`
}

// TimeSpentInRange reports the share of readings below lower, within
// [lower, upper], and above upper.
func TimeSpentInRange(ms []defs.Measurement, lower, upper float64) RangeAnalysis {
	if len(ms) == 0 {
		return RangeAnalysis{}
	}

	below, above := 0.0, 0.0
	for _, m := range ms {
		switch {
		case m.Value < lower:
			below++
		case m.Value > upper:
			above++
		}
	}
	total := float64(len(ms))
	in := total - below - above

	return RangeAnalysis{
		BelowRange: below / total,
		InRange:    in / total,
		AboveRange: above / total,
	}
}

type SummaryStatistics struct {
	Average   float64 `json:"average"`
	Deviation float64 `json:"deviation"`
}

func GlucoseSummary(ms []defs.Measurement) SummaryStatistics {
	if len(ms) == 0 {
		return SummaryStatistics{}
	}
	vs := values(ms)
	avg, _ := stats.Mean(vs)
	dev, _ := stats.StandardDeviation(vs)
	return SummaryStatistics{Average: avg, Deviation: dev}
}
