package defs

import (
	"errors"
	"fmt"
	"time"
)

// GlucoseRecordType is the RecordType value of glucose readings in the device log.
const GlucoseRecordType = "CGM"

var ErrInvalidInterval = errors.New("interval end is before start")

type Kind int

const (
	Glucose Kind = iota
	Calibration
)

func (k Kind) String() string {
	switch k {
	case Glucose:
		return "glucose"
	case Calibration:
		return "calibration"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Record is one validated line of the device log. The timestamp is kept as
// written and converted on demand.
type Record struct {
	PatientID int     `bson:"patientId"`
	Timestamp string  `bson:"timestamp"`
	Kind      Kind    `bson:"kind"`
	Value     float64 `bson:"value"`
}

type Measurement struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

type StatSummary struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
}

// Interval is inclusive at both ends.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewInterval(start, end time.Time) (*Interval, error) {
	if end.Before(start) {
		return nil, ErrInvalidInterval
	}
	return &Interval{Start: start, End: end}, nil
}

func (iv *Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && !t.After(iv.End)
}

type TimestampPolicy string

const (
	// Strict aborts the query on the first unparseable glucose timestamp.
	Strict TimestampPolicy = "strict"
	// Drop skips records whose timestamp does not parse.
	Drop TimestampPolicy = "drop"
)
