package index

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"devicecgm/cgmq/defs"
	"devicecgm/cgmq/pkg/lines"
	"devicecgm/cgmq/pkg/record"

	"go.uber.org/zap"
)

var ErrUnknownStrategy = errors.New("unknown index strategy")

// Index gives access to the records of each patient, in the order they were
// read from the log. An Index never changes once built.
type Index interface {
	Lookup(ctx context.Context, patientID int) ([]defs.Record, error)
	Patients(ctx context.Context) ([]int, error)
}

// Builder consumes the source once and returns a ready Index.
type Builder func(ctx context.Context, src *lines.Source, p *record.Parser, logger *zap.Logger) (Index, error)

// Strategies lists the in-process builders by configuration name.
var Strategies = map[string]Builder{
	"eager":    BuildEager,
	"columnar": BuildColumnar,
	"stream":   BuildStream,
}

func Lookup(name string) (Builder, error) {
	b, ok := Strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return b, nil
}

// Stats counts what a scan did with the lines of the source.
type Stats struct {
	Lines    int
	Records  int
	Rejected int
}

// Scan parses every line of src and hands valid records to fn. Rejected lines
// are skipped. An error from fn ends the scan and is returned as is.
func Scan(ctx context.Context, src *lines.Source, p *record.Parser, fn func(defs.Record) error) (Stats, error) {
	var st Stats
	err := src.Each(ctx, func(_ int, line string) error {
		st.Lines++
		if line == "" {
			return nil
		}
		rec, ok := p.Parse(line)
		if !ok {
			st.Rejected++
			return nil
		}
		st.Records++
		return fn(rec)
	})
	return st, err
}

func logBuilt(logger *zap.Logger, strategy string, st Stats, patients int) {
	logger.Debug("built patient index",
		zap.String("strategy", strategy),
		zap.Int("lines", st.Lines),
		zap.Int("records", st.Records),
		zap.Int("rejected", st.Rejected),
		zap.Int("patients", patients),
	)
}

func sortedKeys(m map[int]struct{}) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
