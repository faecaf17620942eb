package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"devicecgm/cgmq/defs"
	"devicecgm/cgmq/pkg/lines"
	"devicecgm/cgmq/pkg/record"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const fixture = "../../../testdata/device_cgm.txt"

type IndexTestSuite struct {
	suite.Suite
	strategy string
	idx      Index
}

func TestIndexStrategies(t *testing.T) {
	for name := range Strategies {
		t.Run(name, func(t *testing.T) {
			suite.Run(t, &IndexTestSuite{strategy: name})
		})
	}
}

func (suite *IndexTestSuite) SetupSuite() {
	build, err := Lookup(suite.strategy)
	require.NoError(suite.T(), err)

	idx, err := build(context.Background(), lines.New(fixture), record.NewParser(record.DeviceLayout), zap.NewNop())
	require.NoError(suite.T(), err)
	suite.idx = idx
}

func (suite *IndexTestSuite) TestPatients() {
	ids, err := suite.idx.Patients(context.Background())
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), []int{39, 40, 41, 42, 43}, ids)
}

func (suite *IndexTestSuite) TestLookupKeepsEncounterOrder() {
	recs, err := suite.idx.Lookup(context.Background(), 40)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), []defs.Record{
		{PatientID: 40, Timestamp: "2000-04-21 05:00:00", Kind: defs.Glucose, Value: 50},
		{PatientID: 40, Timestamp: "2000-04-21 05:10:00", Kind: defs.Glucose, Value: 55},
		{PatientID: 40, Timestamp: "2000-04-21 05:20:00", Kind: defs.Glucose, Value: 80},
	}, recs)
}

func (suite *IndexTestSuite) TestLookupKeepsCalibrations() {
	recs, err := suite.idx.Lookup(context.Background(), 39)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), recs, 70)

	calibrations := 0
	for _, r := range recs {
		assert.Equal(suite.T(), 39, r.PatientID)
		if r.Kind == defs.Calibration {
			calibrations++
		}
	}
	assert.Equal(suite.T(), 4, calibrations)
}

func (suite *IndexTestSuite) TestLookupUnknownPatient() {
	recs, err := suite.idx.Lookup(context.Background(), 99)
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), recs)
}

func (suite *IndexTestSuite) TestMissingFile() {
	build := Strategies[suite.strategy]
	missing := filepath.Join(suite.T().TempDir(), "missing.txt")

	_, err := build(context.Background(), lines.New(missing), record.NewParser(record.DeviceLayout), zap.NewNop())
	var ioErr *lines.IOError
	assert.ErrorAs(suite.T(), err, &ioErr)
}

func TestUnknownStrategy(t *testing.T) {
	_, err := Lookup("dataframe")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestScanStats(t *testing.T) {
	var recs []defs.Record
	st, err := Scan(context.Background(), lines.New(fixture), record.NewParser(record.DeviceLayout), func(r defs.Record) error {
		recs = append(recs, r)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, Stats{Lines: 89, Records: 84, Rejected: 4}, st)
	assert.Len(t, recs, 84)
}

func TestStrategiesAgree(t *testing.T) {
	ctx := context.Background()
	p := record.NewParser(record.DeviceLayout)

	var want map[int][]defs.Record
	for name, build := range Strategies {
		idx, err := build(ctx, lines.New(fixture), p, zap.NewNop())
		require.NoError(t, err, name)

		got := make(map[int][]defs.Record)
		ids, err := idx.Patients(ctx)
		require.NoError(t, err, name)
		for _, id := range ids {
			got[id], err = idx.Lookup(ctx, id)
			require.NoError(t, err, name)
		}

		if want == nil {
			want = got
			continue
		}
		assert.Equal(t, want, got, name)
	}
}

func TestColumnarLen(t *testing.T) {
	idx, err := BuildColumnar(context.Background(), lines.New(fixture), record.NewParser(record.DeviceLayout), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 84, idx.(*Columnar).Len())
}

func TestScanStopsOnCallbackError(t *testing.T) {
	boom := errors.New("insert failed")
	st, err := Scan(context.Background(), lines.New(fixture), record.NewParser(record.DeviceLayout), func(r defs.Record) error {
		if r.Value == 130 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Stats{Lines: 3, Records: 2, Rejected: 1}, st, "scan must stop at the failing record")
}

func TestOversizedLineIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	body := "1|39|7|2000-04-21 17:05:00|CGM|65|mg/dL|1\n" +
		strings.Repeat("x", 2*1024*1024) + "\n" +
		"2|39|7|2000-04-21 17:10:00|CGM|66|mg/dL|2\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	for name, build := range Strategies {
		idx, err := build(context.Background(), lines.New(path), record.NewParser(record.DeviceLayout), zap.NewNop())
		require.NoError(t, err, name)

		recs, err := idx.Lookup(context.Background(), 39)
		require.NoError(t, err, name)
		assert.Len(t, recs, 2, name)
	}

	st, err := Scan(context.Background(), lines.New(path), record.NewParser(record.DeviceLayout), func(defs.Record) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, Stats{Lines: 3, Records: 2, Rejected: 1}, st)
}
