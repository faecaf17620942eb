package record

import (
	"math"
	"strconv"
	"strings"
	"time"

	"devicecgm/cgmq/defs"
)

const (
	Delimiter = "|"
	numFields = 8
)

// Field positions in RecID|PtID|ParentCITYDeviceUploadsID|DeviceDtTm|RecordType|Value|Units|SortOrd.
const (
	fieldPatientID  = 1
	fieldTimestamp  = 3
	fieldRecordType = 4
	fieldValue      = 5
)

// Layout describes how device timestamps are written.
type Layout struct {
	Pattern  string
	Location *time.Location
}

// DeviceLayout matches "YYYY-MM-DD HH:MM:SS" in UTC.
var DeviceLayout = Layout{Pattern: "2006-01-02 15:04:05", Location: time.UTC}

func (l Layout) Parse(s string) (time.Time, error) {
	loc := l.Location
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(l.Pattern, s, loc)
}

func (l Layout) Format(t time.Time) string {
	loc := l.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(l.Pattern)
}

type Parser struct {
	layout Layout
}

func NewParser(layout Layout) *Parser {
	return &Parser{layout: layout}
}

// Parse turns a log line into a Record. Lines that are not records (headers,
// truncated rows, non-numeric ids or values) report false.
func (p *Parser) Parse(line string) (defs.Record, bool) {
	if strings.Count(line, Delimiter) != numFields-1 {
		return defs.Record{}, false
	}
	fields := strings.Split(line, Delimiter)

	ptID, err := strconv.Atoi(fields[fieldPatientID])
	if err != nil {
		return defs.Record{}, false
	}

	value, err := strconv.ParseFloat(fields[fieldValue], 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return defs.Record{}, false
	}

	kind := defs.Calibration
	if fields[fieldRecordType] == defs.GlucoseRecordType {
		kind = defs.Glucose
	}

	return defs.Record{
		PatientID: ptID,
		Timestamp: fields[fieldTimestamp],
		Kind:      kind,
		Value:     value,
	}, true
}

func (p *Parser) Time(r defs.Record) (time.Time, error) {
	return p.layout.Parse(r.Timestamp)
}
