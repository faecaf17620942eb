package desc

import (
	"fmt"
	"strings"
	"time"

	"devicecgm/cgmq/defs"
	"devicecgm/cgmq/pkg/episode"
	"devicecgm/cgmq/pkg/query"
	"devicecgm/cgmq/pkg/record"
)

// Descriptor renders query results as plain text, with times shown in Loc.
type Descriptor struct {
	Loc *time.Location
}

func New(loc *time.Location) *Descriptor {
	if loc == nil {
		loc = time.UTC
	}
	return &Descriptor{Loc: loc}
}

func (d *Descriptor) Time(t time.Time) string {
	return t.In(d.Loc).Format(record.DeviceLayout.Pattern)
}

func (d *Descriptor) Summary(patientID int, ss *defs.StatSummary) string {
	if ss == nil {
		return fmt.Sprintf("patient %d: no glucose readings\n", patientID)
	}
	return fmt.Sprintf("patient %d: min %.1f, max %.1f, median %.1f\n", patientID, ss.Min, ss.Max, ss.Median)
}

func (d *Descriptor) Measurements(ms []defs.Measurement) string {
	var sb strings.Builder
	for i, m := range ms {
		fmt.Fprintf(&sb, "[%d] %s :: %.1f\n", i, d.Time(m.Time), m.Value)
	}
	return sb.String()
}

func (d *Descriptor) Episodes(patientID int, eps []episode.Episode) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "patient %d: %d hypo episodes\n", patientID, len(eps))
	for i, ep := range eps {
		fmt.Fprintf(&sb, "[%d] %s - %s (%s)\n", i, d.Time(ep.Start), d.Time(ep.End), ep.Duration())
	}
	return sb.String()
}

func (d *Descriptor) Patients(ids []int) string {
	var sb strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&sb, "%d\n", id)
	}
	return sb.String()
}

func (d *Descriptor) Report(r *query.Report) string {
	var sb strings.Builder
	sb.WriteString(d.Summary(r.PatientID, r.Summary))
	fmt.Fprintf(&sb, "readings %d, average %.1f, deviation %.1f\n", r.Count, r.Glucose.Average, r.Glucose.Deviation)
	fmt.Fprintf(&sb, "below %.1f%%, in range %.1f%%, above %.1f%%\n",
		100*r.Range.BelowRange, 100*r.Range.InRange, 100*r.Range.AboveRange)
	sb.WriteString(d.Episodes(r.PatientID, r.Episodes))
	return sb.String()
}
