package report

import (
	"fmt"
	"io"
	"time"

	"devicecgm/cgmq/defs"
	"devicecgm/cgmq/pkg/query"

	"github.com/tealeg/xlsx/v3"
)

const (
	SheetNameSummary      = "Summary"
	SheetNameMeasurements = "Measurements"

	TimeFormat = "2006-01-02 15:04:05"
)

var (
	summaryHeader = []string{
		"Patient", "Readings", "Min", "Max", "Median", "Hypo Episodes",
		"Below Range", "In Range", "Above Range", "Average", "Deviation",
	}
	measurementsHeader = []string{"Patient", "Time", "Value"}
)

type patientData struct {
	report       *query.Report
	measurements []defs.Measurement
}

// Workbook collects per-patient results and renders them as a spreadsheet.
type Workbook struct {
	loc      *time.Location
	patients []patientData
}

func New(loc *time.Location) *Workbook {
	if loc == nil {
		loc = time.UTC
	}
	return &Workbook{loc: loc}
}

func (w *Workbook) Add(r *query.Report, ms []defs.Measurement) {
	w.patients = append(w.patients, patientData{report: r, measurements: ms})
}

func (w *Workbook) Generate() (*xlsx.File, error) {
	file := xlsx.NewFile()

	components := []func(file *xlsx.File) error{
		w.addSummarySheet,
		w.addMeasurementsSheet,
	}
	for _, fn := range components {
		if err := fn(file); err != nil {
			return nil, err
		}
	}

	return file, nil
}

func (w *Workbook) Write(out io.Writer) error {
	file, err := w.Generate()
	if err != nil {
		return fmt.Errorf("unable to generate workbook: %w", err)
	}
	if err := file.Write(out); err != nil {
		return fmt.Errorf("unable to write workbook: %w", err)
	}
	return nil
}

func (w *Workbook) addSummarySheet(file *xlsx.File) error {
	sh, err := file.AddSheet(SheetNameSummary)
	if err != nil {
		return err
	}
	addHeader(sh, summaryHeader)

	for _, p := range w.patients {
		r := p.report
		row := sh.AddRow()
		row.AddCell().SetInt(r.PatientID)
		row.AddCell().SetInt(r.Count)
		if r.Summary != nil {
			row.AddCell().SetFloat(r.Summary.Min)
			row.AddCell().SetFloat(r.Summary.Max)
			row.AddCell().SetFloat(r.Summary.Median)
		} else {
			row.AddCell()
			row.AddCell()
			row.AddCell()
		}
		row.AddCell().SetInt(len(r.Episodes))
		row.AddCell().SetFloat(r.Range.BelowRange)
		row.AddCell().SetFloat(r.Range.InRange)
		row.AddCell().SetFloat(r.Range.AboveRange)
		row.AddCell().SetFloat(r.Glucose.Average)
		row.AddCell().SetFloat(r.Glucose.Deviation)
	}

	return nil
}

func (w *Workbook) addMeasurementsSheet(file *xlsx.File) error {
	sh, err := file.AddSheet(SheetNameMeasurements)
	if err != nil {
		return err
	}
	addHeader(sh, measurementsHeader)

	for _, p := range w.patients {
		for _, m := range p.measurements {
			row := sh.AddRow()
			row.AddCell().SetInt(p.report.PatientID)
			row.AddCell().SetString(m.Time.In(w.loc).Format(TimeFormat))
			row.AddCell().SetFloat(m.Value)
		}
	}

	return nil
}

func addHeader(sh *xlsx.Sheet, names []string) {
	row := sh.AddRow()
	for _, name := range names {
		row.AddCell().SetValue(name)
	}
}
