package index

import (
	"context"
	"fmt"

	"devicecgm/cgmq/defs"
	"devicecgm/cgmq/pkg/lines"
	"devicecgm/cgmq/pkg/record"

	"go.uber.org/zap"
)

// Columnar holds the whole log as parallel columns and filters them per
// query. Row i of every column describes the same record.
type Columnar struct {
	patientIDs []int
	timestamps []string
	kinds      []defs.Kind
	values     []float64

	patients []int
}

func BuildColumnar(ctx context.Context, src *lines.Source, p *record.Parser, logger *zap.Logger) (Index, error) {
	c := &Columnar{}
	seen := make(map[int]struct{})

	st, err := Scan(ctx, src, p, func(rec defs.Record) error {
		c.patientIDs = append(c.patientIDs, rec.PatientID)
		c.timestamps = append(c.timestamps, rec.Timestamp)
		c.kinds = append(c.kinds, rec.Kind)
		c.values = append(c.values, rec.Value)
		seen[rec.PatientID] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to build columnar index: %w", err)
	}

	c.patients = sortedKeys(seen)
	logBuilt(logger, "columnar", st, len(c.patients))
	return c, nil
}

func (c *Columnar) Len() int {
	return len(c.patientIDs)
}

func (c *Columnar) Lookup(_ context.Context, patientID int) ([]defs.Record, error) {
	var recs []defs.Record
	for i, id := range c.patientIDs {
		if id != patientID {
			continue
		}
		recs = append(recs, defs.Record{
			PatientID: id,
			Timestamp: c.timestamps[i],
			Kind:      c.kinds[i],
			Value:     c.values[i],
		})
	}
	return recs, nil
}

func (c *Columnar) Patients(_ context.Context) ([]int, error) {
	ids := make([]int, len(c.patients))
	copy(ids, c.patients)
	return ids, nil
}
