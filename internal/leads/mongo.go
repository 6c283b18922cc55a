package leads

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LeadsCollection is the collection All reads from.
const LeadsCollection = "leads"

// MongoStore is the MongoDB lead store.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect opens a client for uri, pings it, and binds database db.
func Connect(ctx context.Context, uri, db string, timeout time.Duration) (*MongoStore, error) {
	opts := options.Client().ApplyURI(uri)
	if timeout > 0 {
		opts.SetConnectTimeout(timeout).SetServerSelectionTimeout(timeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to lead store: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging lead store: %w", err)
	}
	return &MongoStore{client: client, db: client.Database(db)}, nil
}

// Close disconnects the client.
func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// All implements Store. Documents are returned without _id, in natural
// order, with their fields in stored order.
func (m *MongoStore) All(ctx context.Context) ([]Record, error) {
	cur, err := m.db.Collection(LeadsCollection).Find(ctx, bson.D{},
		options.Find().SetProjection(bson.D{{Key: "_id", Value: 0}}))
	if err != nil {
		return nil, err
	}
	var docs []bson.D
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]Record, len(docs))
	for i, d := range docs {
		rec := make(Record, 0, len(d))
		for _, e := range d {
			rec = append(rec, Field{Key: e.Key, Value: plain(e.Value)})
		}
		out[i] = rec
	}
	return out, nil
}

// Flush implements Store. It empties every collection of the database,
// not only the leads collection.
func (m *MongoStore) Flush(ctx context.Context) (FlushResult, error) {
	var res FlushResult
	names, err := m.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return res, fmt.Errorf("listing collections: %w", err)
	}
	for _, name := range names {
		dr, err := m.db.Collection(name).DeleteMany(ctx, bson.D{})
		if err != nil {
			return res, fmt.Errorf("flushing %s: %w", name, err)
		}
		res.Collections = append(res.Collections, name)
		res.Deleted += dr.DeletedCount
	}
	return res, nil
}

// plain converts BSON-specific scalar types to their Go equivalents.
func plain(v interface{}) interface{} {
	switch x := v.(type) {
	case primitive.DateTime:
		return x.Time().UTC().Format(time.RFC3339)
	case primitive.ObjectID:
		return x.Hex()
	case primitive.Decimal128:
		return x.String()
	case primitive.Null, primitive.Undefined:
		return nil
	}
	return v
}
