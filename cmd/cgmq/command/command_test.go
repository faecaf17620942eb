package command

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"devicecgm/cgmq/defs"
	cgmqhttp "devicecgm/cgmq/pkg/http"
	"devicecgm/cgmq/pkg/index"
	"devicecgm/cgmq/pkg/lines"
	"devicecgm/cgmq/pkg/query"
	"devicecgm/cgmq/pkg/record"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const fixture = "../../../testdata/device_cgm.txt"

func run(t *testing.T, args ...string) (string, error) {
	path, err := filepath.Abs(fixture)
	require.NoError(t, err)
	t.Setenv("CGMQ_SOURCE_PATH", path)

	startFlag, endFlag, remote, showEpisodes = "", "", "", false

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs(args)
	err = rootCmd.Execute()
	return buf.String(), err
}

func TestSummary(t *testing.T) {
	out, err := run(t, "summary", "--patient", "40")
	require.NoError(t, err)
	assert.Equal(t, "patient 40: min 50.0, max 80.0, median 55.0\n", out)
}

func TestSummaryInterval(t *testing.T) {
	out, err := run(t, "summary", "--patient", "39",
		"--start", "2000-03-25 00:02:56", "--end", "2000-03-25 02:22:56")
	require.NoError(t, err)
	assert.Equal(t, "patient 39: min 88.0, max 136.0, median 116.0\n", out)
}

func TestMeasurements(t *testing.T) {
	out, err := run(t, "measurements", "--patient", "39",
		"--start", "2000-04-21 04:31:56", "--end", "2000-04-21 05:16:56")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 10)
	assert.Equal(t, "[0] 2000-04-21 04:31:56 :: 100.0", lines[0])
	assert.Equal(t, "[9] 2000-04-21 05:16:56 :: 109.0", lines[9])
}

func TestHypo(t *testing.T) {
	out, err := run(t, "hypo", "--patient", "39")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)

	out, err = run(t, "hypo", "--patient", "39", "--episodes")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "patient 39: 3 hypo episodes\n"), out)
	assert.Contains(t, out, "2000-04-21 17:05:00 - 2000-04-21 17:25:00")
}

func TestReport(t *testing.T) {
	out, err := run(t, "report", "--patient", "40")
	require.NoError(t, err)
	assert.Contains(t, out, "readings 3")
	assert.Contains(t, out, "below 66.7%, in range 33.3%, above 0.0%")
}

func TestPatients(t *testing.T) {
	out, err := run(t, "patients")
	require.NoError(t, err)
	assert.Equal(t, "39\n40\n41\n42\n43\n", out)
}

func TestExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	out, err := run(t, "export", "--patient", "40", "-o", path)
	require.NoError(t, err)
	assert.Equal(t, "exported 1 patients to "+path+"\n", out)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestStrictTimestamp(t *testing.T) {
	_, err := run(t, "summary", "--patient", "42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "9h05")
}

func TestHalfInterval(t *testing.T) {
	_, err := run(t, "summary", "--patient", "39", "--start", "2000-03-25 00:02:56")
	assert.Error(t, err)
}

func TestRemote(t *testing.T) {
	gin.SetMode(gin.TestMode)
	parser := record.NewParser(record.DeviceLayout)
	engine, err := query.New(func(ctx context.Context) (index.Index, error) {
		return index.BuildEager(ctx, lines.New(fixture), parser, zap.NewNop())
	}, parser, query.Options{}, zap.NewNop())
	require.NoError(t, err)

	srv := httptest.NewServer(cgmqhttp.New(engine, defs.GlucoseConfig{Low: defs.DefaultLow, High: defs.DefaultHigh}, zap.NewNop()).Handler())
	defer srv.Close()

	out, err := run(t, "summary", "--patient", "40", "--remote", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "patient 40: min 50.0, max 80.0, median 55.0\n", out)

	out, err = run(t, "summary", "--patient", "43", "--remote", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "patient 43: no glucose readings\n", out)
}

func TestParseInterval(t *testing.T) {
	iv, err := parseInterval("", "")
	assert.NoError(t, err)
	assert.Nil(t, iv)

	iv, err = parseInterval("2000-04-21 17:00:00", "2000-04-21 18:00:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2000, time.April, 21, 17, 0, 0, 0, time.UTC), iv.Start)
	assert.Equal(t, time.Hour, iv.End.Sub(iv.Start))

	_, err = parseInterval("2000-04-21 18:00:00", "2000-04-21 17:00:00")
	assert.ErrorIs(t, err, defs.ErrInvalidInterval)

	_, err = parseInterval("yesterday", "2000-04-21 17:00:00")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger(defs.LogConfig{Production: true, Level: "info"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.DebugLevel))
	assert.True(t, l.Core().Enabled(zap.InfoLevel))

	_, err = newLogger(defs.LogConfig{Production: true, Level: "loud"})
	assert.Error(t, err)
}
