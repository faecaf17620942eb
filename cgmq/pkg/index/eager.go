package index

import (
	"context"
	"fmt"
	"sort"

	"devicecgm/cgmq/defs"
	"devicecgm/cgmq/pkg/lines"
	"devicecgm/cgmq/pkg/record"

	"go.uber.org/zap"
)

// Eager groups every record by patient in memory.
type Eager struct {
	db map[int][]defs.Record
}

func BuildEager(ctx context.Context, src *lines.Source, p *record.Parser, logger *zap.Logger) (Index, error) {
	db := make(map[int][]defs.Record)
	st, err := Scan(ctx, src, p, func(rec defs.Record) error {
		db[rec.PatientID] = append(db[rec.PatientID], rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to build eager index: %w", err)
	}

	logBuilt(logger, "eager", st, len(db))
	return &Eager{db: db}, nil
}

func (e *Eager) Lookup(_ context.Context, patientID int) ([]defs.Record, error) {
	recs := e.db[patientID]
	out := make([]defs.Record, len(recs))
	copy(out, recs)
	return out, nil
}

func (e *Eager) Patients(_ context.Context) ([]int, error) {
	ids := make([]int, 0, len(e.db))
	for id := range e.db {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}
