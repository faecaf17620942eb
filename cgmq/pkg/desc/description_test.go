package desc

import (
	"strings"
	"testing"
	"time"

	"devicecgm/cgmq/defs"
	"devicecgm/cgmq/pkg/episode"
	"devicecgm/cgmq/pkg/query"
	"devicecgm/cgmq/pkg/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, min int) time.Time {
	return time.Date(2000, time.April, 21, hour, min, 0, 0, time.UTC)
}

func TestSummary(t *testing.T) {
	d := New(nil)
	assert.Equal(t, "patient 39: min 88.0, max 136.0, median 116.0\n",
		d.Summary(39, &defs.StatSummary{Min: 88, Max: 136, Median: 116}))
	assert.Equal(t, "patient 43: no glucose readings\n", d.Summary(43, nil))
}

func TestMeasurementsInLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	d := New(loc)

	out := d.Measurements([]defs.Measurement{
		{Time: at(5, 0), Value: 50},
		{Time: at(5, 10), Value: 55.5},
	})
	assert.Equal(t, "[0] 2000-04-21 00:00:00 :: 50.0\n[1] 2000-04-21 00:10:00 :: 55.5\n", out)
}

func TestEpisodes(t *testing.T) {
	d := New(time.UTC)
	out := d.Episodes(39, []episode.Episode{{Start: at(17, 5), End: at(17, 25)}})
	assert.Equal(t, "patient 39: 1 hypo episodes\n[0] 2000-04-21 17:05:00 - 2000-04-21 17:25:00 (20m0s)\n", out)
}

func TestPatients(t *testing.T) {
	assert.Equal(t, "39\n40\n", New(nil).Patients([]int{39, 40}))
	assert.Empty(t, New(nil).Patients(nil))
}

func TestReport(t *testing.T) {
	out := New(nil).Report(&query.Report{
		PatientID: 40,
		Count:     3,
		Summary:   &defs.StatSummary{Min: 50, Max: 80, Median: 55},
		Range:     stats.RangeAnalysis{BelowRange: 0.5, InRange: 0.25, AboveRange: 0.25},
		Glucose:   stats.SummaryStatistics{Average: 61.5, Deviation: 2},
		Episodes:  []episode.Episode{},
	})

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "patient 40: min 50.0, max 80.0, median 55.0", lines[0])
	assert.Equal(t, "readings 3, average 61.5, deviation 2.0", lines[1])
	assert.Equal(t, "below 50.0%, in range 25.0%, above 25.0%", lines[2])
	assert.Equal(t, "patient 40: 0 hypo episodes", lines[3])
}
