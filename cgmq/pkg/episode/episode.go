package episode

import (
	"time"

	"devicecgm/cgmq/defs"
)

const (
	// LowThreshold is the glucose value, in mg/dL, below which a reading is low.
	LowThreshold = 70
	// MinDuration is the minimum span between the first and last low reading
	// of a run for it to count as an episode.
	MinDuration = 15 * time.Minute
)

// Episode is a hypoglycemic run, from its first to its last low reading.
type Episode struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (e Episode) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

type state int

const (
	outside state = iota
	insideLow
)

// Detect scans time-ordered measurements and returns every qualifying
// episode. A run only closes on a non-low reading, so a run still open at the
// end of the input is not reported.
func Detect(ms []defs.Measurement) []Episode {
	var (
		episodes   []Episode
		st         = outside
		start, end time.Time
		hasEnd     bool
	)

	for _, m := range ms {
		if m.Value < LowThreshold {
			if st == outside {
				st = insideLow
				start = m.Time
			} else {
				end = m.Time
				hasEnd = true
			}
			continue
		}

		if st == insideLow && hasEnd && absDuration(end.Sub(start)) >= MinDuration {
			episodes = append(episodes, Episode{Start: start, End: end})
		}
		st = outside
		hasEnd = false
	}

	return episodes
}

func Count(ms []defs.Measurement) int {
	return len(Detect(ms))
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
