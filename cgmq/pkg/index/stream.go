package index

import (
	"context"
	"fmt"

	"devicecgm/cgmq/defs"
	"devicecgm/cgmq/pkg/lines"
	"devicecgm/cgmq/pkg/record"

	"go.uber.org/zap"
)

// Stream keeps no records. Each lookup reads the source again and keeps only
// the requested patient's lines.
type Stream struct {
	src      *lines.Source
	parser   *record.Parser
	patients []int
	logger   *zap.Logger
}

func BuildStream(ctx context.Context, src *lines.Source, p *record.Parser, logger *zap.Logger) (Index, error) {
	seen := make(map[int]struct{})
	st, err := Scan(ctx, src, p, func(rec defs.Record) error {
		seen[rec.PatientID] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to build stream index: %w", err)
	}

	patients := sortedKeys(seen)
	logBuilt(logger, "stream", st, len(patients))
	return &Stream{src: src, parser: p, patients: patients, logger: logger}, nil
}

func (s *Stream) Lookup(ctx context.Context, patientID int) ([]defs.Record, error) {
	var recs []defs.Record
	_, err := Scan(ctx, s.src, s.parser, func(rec defs.Record) error {
		if rec.PatientID == patientID {
			recs = append(recs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to stream records for patient %d: %w", patientID, err)
	}

	s.logger.Debug("streamed patient records", zap.Int("patientID", patientID), zap.Int("records", len(recs)))
	return recs, nil
}

func (s *Stream) Patients(_ context.Context) ([]int, error) {
	ids := make([]int, len(s.patients))
	copy(ids, s.patients)
	return ids, nil
}
