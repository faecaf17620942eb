package cgmq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"devicecgm/cgmq/defs"
	"devicecgm/cgmq/pkg/client"
	"devicecgm/cgmq/pkg/episode"
	"devicecgm/cgmq/pkg/http"
	"devicecgm/cgmq/pkg/index"
	"devicecgm/cgmq/pkg/lines"
	"devicecgm/cgmq/pkg/mg"
	"devicecgm/cgmq/pkg/query"
	"devicecgm/cgmq/pkg/record"
	"devicecgm/cgmq/pkg/report"

	"go.uber.org/zap"
)

// MongoStrategy stores the index in MongoDB instead of process memory.
const MongoStrategy = "mongo"

var ErrNoSource = errors.New("no source path configured")

// Querier is answered by a local query.Engine and by a remote client.Client.
type Querier interface {
	Patients(ctx context.Context) ([]int, error)
	MinMaxMedian(ctx context.Context, patientID int, iv *defs.Interval) (*defs.StatSummary, error)
	OrderedMeasurements(ctx context.Context, patientID int, iv *defs.Interval) ([]defs.Measurement, error)
	HypoEventsCount(ctx context.Context, patientID int, iv *defs.Interval) (int, error)
	HypoEpisodes(ctx context.Context, patientID int, iv *defs.Interval) ([]episode.Episode, error)
	Report(ctx context.Context, patientID int, iv *defs.Interval, low, high float64) (*query.Report, error)
}

var (
	_ Querier = (*query.Engine)(nil)
	_ Querier = (*client.Client)(nil)
)

type Server struct {
	Engine   *query.Engine
	Mongo    *mg.MongoStore
	Logger   *zap.Logger
	Location *time.Location
	Config   defs.Config
}

func New(ctx context.Context, config defs.Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := Location(config.Timezone)
	if err != nil {
		return nil, err
	}

	if config.Source.Path == "" {
		return nil, ErrNoSource
	}
	src := lines.New(config.Source.Path,
		lines.WithBufferSize(config.Source.BufferSize),
		lines.WithLogger(logger),
	)
	parser := record.NewParser(record.DeviceLayout)

	s := &Server{
		Logger:   logger,
		Location: loc,
		Config:   config,
	}

	var load query.Loader
	if config.Index.Strategy == MongoStrategy {
		ms, err := mg.New(ctx, config.Mongo, config.Mongo.Database, logger)
		if err != nil {
			return nil, err
		}
		s.Mongo = ms
		load = func(ctx context.Context) (index.Index, error) {
			return ms.Build(ctx, src, parser, logger)
		}
	} else {
		build, err := index.Lookup(config.Index.Strategy)
		if err != nil {
			return nil, err
		}
		load = func(ctx context.Context) (index.Index, error) {
			return build(ctx, src, parser, logger)
		}
	}

	engine, err := query.New(load, parser, query.Options{
		Policy:    config.Index.TimestampPolicy,
		CacheSize: config.Query.CacheSize,
	}, logger)
	if err != nil {
		return nil, err
	}
	s.Engine = engine

	logger.Debug("finished server setup",
		zap.String("source", config.Source.Path),
		zap.String("strategy", config.Index.Strategy),
		zap.String("timestampPolicy", string(config.Index.TimestampPolicy)),
		zap.Int("cacheSize", config.Query.CacheSize),
	)
	return s, nil
}

// Location resolves a configured timezone name. Empty means UTC.
func Location(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unable to load timezone %q: %w", name, err)
	}
	return loc, nil
}

// Serve builds the index, then answers HTTP queries until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	start := time.Now()
	if err := s.Engine.Load(ctx); err != nil {
		return err
	}
	s.Logger.Debug("index ready", zap.Duration("took", time.Since(start)))

	hs := http.New(s.Engine, s.Config.Glucose, s.Logger)
	return hs.ListenAndServe(ctx, s.Config.HTTP.Address)
}

func (s *Server) Close(ctx context.Context) error {
	if s.Mongo == nil {
		return nil
	}
	return s.Mongo.Disconnect(ctx)
}

// Export writes a workbook with a report and the readings of every patient in
// ids.
func Export(ctx context.Context, q Querier, ids []int, iv *defs.Interval, glucose defs.GlucoseConfig, loc *time.Location, w io.Writer) error {
	wb := report.New(loc)
	for _, id := range ids {
		r, err := q.Report(ctx, id, iv, glucose.Low, glucose.High)
		if err != nil {
			return fmt.Errorf("unable to export patient %d: %w", id, err)
		}
		ms, err := q.OrderedMeasurements(ctx, id, iv)
		if err != nil {
			return fmt.Errorf("unable to export patient %d: %w", id, err)
		}
		wb.Add(r, ms)
	}
	return wb.Write(w)
}
