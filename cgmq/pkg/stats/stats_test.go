package stats

import (
	"math/rand"
	"testing"
	"time"

	"devicecgm/cgmq/defs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type StatsTestSuite struct {
	suite.Suite
}

func TestStatsTestSuite(t *testing.T) {
	suite.Run(t, new(StatsTestSuite))
}

func (suite *StatsTestSuite) TestSummarizeOdd() {
	ss, err := Summarize(fromValues(136, 88, 100))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), &defs.StatSummary{Min: 88, Max: 136, Median: 100}, ss)
}

func (suite *StatsTestSuite) TestSummarizeEven() {
	ss, err := Summarize(fromValues(112, 88, 136, 100))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), &defs.StatSummary{Min: 88, Max: 136, Median: 106}, ss)
}

func (suite *StatsTestSuite) TestSummarizeKeepsFraction() {
	ss, err := Summarize(fromValues(100, 101))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 100.5, ss.Median)
}

func (suite *StatsTestSuite) TestSummarizeEmpty() {
	ss, err := Summarize(nil)
	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), ss)
}

func (suite *StatsTestSuite) TestSummarizeDoesNotReorder() {
	ms := fromValues(3, 1, 2)
	_, err := Summarize(ms)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), fromValues(3, 1, 2), ms)
}

func (suite *StatsTestSuite) TestSummaryOrdering() {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		ms := genReadings(r, metaReadings{size: 1 + r.Intn(50), min: 40, max: 400})
		ss, err := Summarize(ms)
		require.NoError(suite.T(), err)
		assert.LessOrEqual(suite.T(), ss.Min, ss.Median)
		assert.LessOrEqual(suite.T(), ss.Median, ss.Max)
	}
}

func (suite *StatsTestSuite) TestTimeSpentInRange() {
	r := rand.New(rand.NewSource(1))
	ms := genReadings(r, []metaReadings{
		{size: 15, min: 40, max: 69},
		{size: 60, min: 70, max: 180},
		{size: 25, min: 181, max: 400},
	}...)
	ra := TimeSpentInRange(ms, 70, 180)

	assert.Equal(suite.T(), 15.0/100, ra.BelowRange, "below range should match")
	assert.Equal(suite.T(), 60.0/100, ra.InRange, "in range should match")
	assert.Equal(suite.T(), 25.0/100, ra.AboveRange, "above range should match")
}

func (suite *StatsTestSuite) TestTimeSpentInRangeEmpty() {
	assert.Equal(suite.T(), RangeAnalysis{}, TimeSpentInRange(nil, 70, 180))
}

func (suite *StatsTestSuite) TestGlucoseSummary() {
	r := rand.New(rand.NewSource(1))
	ms := genReadings(r, metaReadings{size: 100, min: 108, max: 108})
	ss := GlucoseSummary(ms)

	assert.Equal(suite.T(), float64(108), ss.Average, "averages do not equal")
	assert.Equal(suite.T(), float64(0), ss.Deviation, "deviations do not equal")
}

type metaReadings struct {
	size int
	min  float64
	max  float64
}

func fromValues(vs ...float64) []defs.Measurement {
	return genValues(time.Date(2000, time.March, 25, 0, 0, 0, 0, time.UTC), vs)
}

func genValues(start time.Time, vs []float64) []defs.Measurement {
	ms := make([]defs.Measurement, len(vs))
	for i, v := range vs {
		ms[i] = defs.Measurement{Time: start.Add(time.Duration(i*5) * time.Minute), Value: v}
	}
	return ms
}

func genReadings(r *rand.Rand, mrs ...metaReadings) []defs.Measurement {
	var vs []float64
	for _, mr := range mrs {
		for i := 0; i < mr.size; i++ {
			vs = append(vs, mr.min+r.Float64()*(mr.max-mr.min))
		}
	}
	return genValues(time.Date(2000, time.March, 25, 0, 0, 0, 0, time.UTC), vs)
}
