package query

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"devicecgm/cgmq/defs"
	"devicecgm/cgmq/pkg/episode"
	"devicecgm/cgmq/pkg/index"
	"devicecgm/cgmq/pkg/record"
	"devicecgm/cgmq/pkg/stats"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
)

// Loader builds the patient index. An Engine calls it until one call succeeds
// or fails for a reason other than a done context.
type Loader func(ctx context.Context) (index.Index, error)

type Options struct {
	Policy    defs.TimestampPolicy
	CacheSize int
}

// TimestampError reports a glucose record whose timestamp could not be read.
type TimestampError struct {
	PatientID int
	Raw       string
	Err       error
}

func (e *TimestampError) Error() string {
	return fmt.Sprintf("patient %d: unable to parse timestamp %q: %v", e.PatientID, e.Raw, e.Err)
}

func (e *TimestampError) Unwrap() error {
	return e.Err
}

type Report struct {
	PatientID int                     `json:"patientId"`
	Count     int                     `json:"count"`
	Summary   *defs.StatSummary       `json:"summary"`
	Range     stats.RangeAnalysis     `json:"range"`
	Glucose   stats.SummaryStatistics `json:"glucose"`
	Episodes  []episode.Episode       `json:"episodes"`
}

// Engine answers per-patient glucose queries. The index is built on first use
// and only read afterwards, so an Engine is safe for concurrent use.
type Engine struct {
	parser *record.Parser
	policy defs.TimestampPolicy
	logger *zap.Logger

	load  Loader
	mu    sync.Mutex
	idx   index.Index
	err   error
	cache *lru.Cache
}

func New(load Loader, parser *record.Parser, opts Options, logger *zap.Logger) (*Engine, error) {
	if opts.Policy == "" {
		opts.Policy = defs.Strict
	}

	e := &Engine{
		parser: parser,
		policy: opts.Policy,
		logger: logger,
		load:   load,
	}

	if opts.CacheSize > 0 {
		cache, err := lru.New(opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("unable to create series cache: %w", err)
		}
		e.cache = cache
	}

	return e, nil
}

// Load builds the index if that has not happened yet. A failed build is
// remembered and returned by every later call, unless it failed because ctx
// was done.
func (e *Engine) Load(ctx context.Context) error {
	_, err := e.index(ctx)
	return err
}

func (e *Engine) index(ctx context.Context) (index.Index, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.idx != nil || e.err != nil {
		return e.idx, e.err
	}

	e.logger.Debug("loading patient index")
	idx, err := e.load(ctx)
	if err != nil {
		err = fmt.Errorf("unable to load patient index: %w", err)
		if ctx.Err() == nil {
			e.err = err
		}
		return nil, err
	}
	e.idx = idx
	return idx, nil
}

func (e *Engine) Patients(ctx context.Context) ([]int, error) {
	idx, err := e.index(ctx)
	if err != nil {
		return nil, err
	}
	return idx.Patients(ctx)
}

func (e *Engine) MinMaxMedian(ctx context.Context, patientID int, iv *defs.Interval) (*defs.StatSummary, error) {
	ms, err := e.window(ctx, patientID, iv)
	if err != nil {
		return nil, err
	}
	return stats.Summarize(ms)
}

// OrderedMeasurements returns the patient's glucose readings sorted by time.
// The slice belongs to the caller.
func (e *Engine) OrderedMeasurements(ctx context.Context, patientID int, iv *defs.Interval) ([]defs.Measurement, error) {
	ms, err := e.window(ctx, patientID, iv)
	if err != nil {
		return nil, err
	}
	out := make([]defs.Measurement, len(ms))
	copy(out, ms)
	return out, nil
}

func (e *Engine) HypoEventsCount(ctx context.Context, patientID int, iv *defs.Interval) (int, error) {
	ms, err := e.window(ctx, patientID, iv)
	if err != nil {
		return 0, err
	}
	return episode.Count(ms), nil
}

func (e *Engine) HypoEpisodes(ctx context.Context, patientID int, iv *defs.Interval) ([]episode.Episode, error) {
	ms, err := e.window(ctx, patientID, iv)
	if err != nil {
		return nil, err
	}
	eps := episode.Detect(ms)
	if eps == nil {
		eps = []episode.Episode{}
	}
	return eps, nil
}

// Report gathers everything known about the patient's glucose in one pass.
func (e *Engine) Report(ctx context.Context, patientID int, iv *defs.Interval, low, high float64) (*Report, error) {
	ms, err := e.window(ctx, patientID, iv)
	if err != nil {
		return nil, err
	}

	summary, err := stats.Summarize(ms)
	if err != nil {
		return nil, fmt.Errorf("unable to summarize glucose: %w", err)
	}
	eps := episode.Detect(ms)
	if eps == nil {
		eps = []episode.Episode{}
	}

	return &Report{
		PatientID: patientID,
		Count:     len(ms),
		Summary:   summary,
		Range:     stats.TimeSpentInRange(ms, low, high),
		Glucose:   stats.GlucoseSummary(ms),
		Episodes:  eps,
	}, nil
}

// window returns the part of the patient's sorted series inside iv. The
// result may be shared with the cache and must not be modified.
func (e *Engine) window(ctx context.Context, patientID int, iv *defs.Interval) ([]defs.Measurement, error) {
	ms, err := e.series(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if iv == nil {
		return ms, nil
	}

	lo := sort.Search(len(ms), func(i int) bool { return !ms[i].Time.Before(iv.Start) })
	hi := sort.Search(len(ms), func(i int) bool { return ms[i].Time.After(iv.End) })
	if lo >= hi {
		return []defs.Measurement{}, nil
	}
	return ms[lo:hi:hi], nil
}

// series returns all glucose measurements of the patient in time order.
func (e *Engine) series(ctx context.Context, patientID int) ([]defs.Measurement, error) {
	idx, err := e.index(ctx)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if v, ok := e.cache.Get(patientID); ok {
			return v.([]defs.Measurement), nil
		}
	}

	recs, err := idx.Lookup(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("unable to look up patient %d: %w", patientID, err)
	}

	ms := make([]defs.Measurement, 0, len(recs))
	for _, rec := range recs {
		if rec.Kind != defs.Glucose {
			continue
		}
		t, err := e.parser.Time(rec)
		if err != nil {
			if e.policy == defs.Drop {
				e.logger.Debug("dropping record with bad timestamp",
					zap.Int("patientID", patientID),
					zap.String("timestamp", rec.Timestamp),
					zap.Error(err),
				)
				continue
			}
			return nil, &TimestampError{PatientID: patientID, Raw: rec.Timestamp, Err: err}
		}
		ms = append(ms, defs.Measurement{Time: t, Value: rec.Value})
	}

	sort.SliceStable(ms, func(i, j int) bool {
		return ms[i].Time.Before(ms[j].Time)
	})

	if e.cache != nil {
		e.cache.Add(patientID, ms)
		e.logger.Debug("cached patient series", zap.Int("patientID", patientID), zap.Int("measurements", len(ms)))
	}
	return ms, nil
}
