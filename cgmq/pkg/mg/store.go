package mg

import (
	"context"
	"fmt"
	"sort"

	"devicecgm/cgmq/defs"
	"devicecgm/cgmq/pkg/index"
	"devicecgm/cgmq/pkg/lines"
	"devicecgm/cgmq/pkg/record"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	RecordsCollection = "records"

	insertBatchSize = 1000
)

// recordDoc is a record as stored; seq keeps the order of the source log.
type recordDoc struct {
	Seq         int64 `bson:"seq"`
	defs.Record `bson:",inline"`
}

type MongoStore struct {
	Client *mongo.Client
	Logger *zap.Logger

	DBName string
}

func New(ctx context.Context, cfg defs.MongoConfig, dbName string, logger *zap.Logger) (*MongoStore, error) {
	opts := []*options.ClientOptions{options.Client().ApplyURI(cfg.URI)}
	if cfg.Username != "" {
		opts = append(opts, options.Client().SetAuth(options.Credential{
			Username: cfg.Username,
			Password: cfg.Password,
		}))
	}

	mongoClient, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to mongo: %w", err)
	}

	return &MongoStore{
		Client: mongoClient,
		Logger: logger,
		DBName: dbName,
	}, nil
}

func (ms *MongoStore) collection() *mongo.Collection {
	return ms.Client.Database(ms.DBName).Collection(RecordsCollection)
}

// Build replaces the stored records with the contents of src and returns the
// store as an index.Index.
func (ms *MongoStore) Build(ctx context.Context, src *lines.Source, p *record.Parser, logger *zap.Logger) (index.Index, error) {
	coll := ms.collection()
	if err := coll.Drop(ctx); err != nil {
		return nil, fmt.Errorf("unable to drop records: %w", err)
	}

	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			primitive.E{Key: "patientId", Value: 1},
			primitive.E{Key: "seq", Value: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create records index: %w", err)
	}

	var (
		seq   int64
		batch = make([]interface{}, 0, insertBatchSize)
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := coll.InsertMany(ctx, batch); err != nil {
			return fmt.Errorf("unable to insert records: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	st, err := index.Scan(ctx, src, p, func(rec defs.Record) error {
		seq++
		batch = append(batch, recordDoc{Seq: seq, Record: rec})
		if len(batch) < insertBatchSize {
			return nil
		}
		return flush()
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return nil, fmt.Errorf("unable to build mongo index: %w", err)
	}

	logger.Debug("built patient index",
		zap.String("strategy", "mongo"),
		zap.String("db", ms.DBName),
		zap.Int("lines", st.Lines),
		zap.Int("records", st.Records),
		zap.Int("rejected", st.Rejected),
	)
	return ms, nil
}

func (ms *MongoStore) Lookup(ctx context.Context, patientID int) ([]defs.Record, error) {
	ms.Logger.Debug("reading records", zap.String("collection", RecordsCollection), zap.Int("patientID", patientID))

	findOptions := options.Find()
	findOptions.SetSort(bson.D{primitive.E{Key: "seq", Value: 1}})

	cur, err := ms.collection().Find(ctx, bson.M{"patientId": patientID}, findOptions)
	if err != nil {
		ms.Logger.Debug("unable to read records", zap.Int("patientID", patientID), zap.Error(err))
		return nil, fmt.Errorf("unable to read records: %w", err)
	}

	var docs []recordDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("unable to decode records: %w", err)
	}

	recs := make([]defs.Record, len(docs))
	for i, doc := range docs {
		recs[i] = doc.Record
	}
	return recs, nil
}

func (ms *MongoStore) Patients(ctx context.Context) ([]int, error) {
	vals, err := ms.collection().Distinct(ctx, "patientId", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("unable to list patients: %w", err)
	}

	ids := make([]int, 0, len(vals))
	for _, v := range vals {
		switch id := v.(type) {
		case int32:
			ids = append(ids, int(id))
		case int64:
			ids = append(ids, int(id))
		default:
			return nil, fmt.Errorf("unexpected patient id type %T", v)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (ms *MongoStore) Disconnect(ctx context.Context) error {
	return ms.Client.Disconnect(ctx)
}
