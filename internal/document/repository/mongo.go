package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/signflow/signflow-server/internal/document"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo stores agreements in a MongoDB collection. Records written by
// older deployments may use ObjectID keys or different field names; reads go
// through document.FromRecord.
type MongoRepo struct {
	col *mongo.Collection
	now func() time.Time
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	return &MongoRepo{col: col, now: time.Now}
}

// EnsureIndexes creates the lookup indexes used by listings.
func (m *MongoRepo) EnsureIndexes(ctx context.Context) error {
	_, err := m.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "agentId", Value: 1}}},
		{Keys: bson.D{{Key: "metadata.agentId", Value: 1}}},
		{Keys: bson.D{{Key: "metadata.clientEmail", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("ensure document indexes: %w", err)
	}
	return nil
}

func (m *MongoRepo) Create(ctx context.Context, d *document.Document) error {
	if d.ID == "" {
		d.ID = document.NewID()
	}
	if _, err := m.col.InsertOne(ctx, document.ToRecord(d)); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	d.StoreKey = d.ID
	return nil
}

// Get resolves the identifier as an ObjectID key first, then as a string
// key or legacy "id" field.
func (m *MongoRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		d, err := m.findOne(ctx, bson.M{"_id": oid})
		if err == nil || !errors.Is(err, ErrNotFound) {
			return d, err
		}
	}
	return m.findOne(ctx, bson.M{"$or": bson.A{bson.M{"_id": id}, bson.M{"id": id}}})
}

func (m *MongoRepo) findOne(ctx context.Context, filter bson.M) (*document.Document, error) {
	var rec bson.M
	if err := m.col.FindOne(ctx, filter).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return document.FromRecord(rec, m.now()), nil
}

func buildFilter(f document.Filter) bson.M {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = statusFilter(f.Status)
	}
	if f.OwnerID != "" {
		filter["$or"] = bson.A{bson.M{"agentId": f.OwnerID}, bson.M{"metadata.agentId": f.OwnerID}}
	}
	if f.ClientID != "" {
		filter["metadata.clientId"] = f.ClientID
	}
	return filter
}

// statusFilter mirrors FromRecord: a record is SIGNED only when its raw
// status reads "signed" in any case; everything else, missing status
// included, is PENDING.
func statusFilter(status string) interface{} {
	signed := primitive.Regex{Pattern: `^\s*` + string(document.StatusSigned) + `\s*$`, Options: "i"}
	switch {
	case strings.EqualFold(strings.TrimSpace(status), string(document.StatusSigned)):
		return signed
	case strings.EqualFold(strings.TrimSpace(status), string(document.StatusPending)):
		return bson.M{"$not": signed}
	default:
		return bson.M{"$in": bson.A{}}
	}
}

func (m *MongoRepo) List(ctx context.Context, f document.Filter) ([]*document.Document, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(f.EffectiveLimit()))
	cur, err := m.col.Find(ctx, buildFilter(f), opts)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer cur.Close(ctx)
	now := m.now()
	out := []*document.Document{}
	for cur.Next(ctx) {
		var rec bson.M
		if err := cur.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, document.FromRecord(rec, now))
	}
	return out, cur.Err()
}

func (m *MongoRepo) Count(ctx context.Context, f document.Filter) (int64, error) {
	n, err := m.col.CountDocuments(ctx, buildFilter(f))
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

func storeKey(d *document.Document) interface{} {
	if d.StoreKey != nil {
		return d.StoreKey
	}
	return d.ID
}

// Save writes the mutable fields when the stored version still equals
// expectedVersion. Records that predate versioning count as version 0.
func (m *MongoRepo) Save(ctx context.Context, d *document.Document, expectedVersion int64) error {
	key := storeKey(d)
	filter := bson.M{"_id": key}
	if expectedVersion == 0 {
		filter["$or"] = bson.A{bson.M{"version": int64(0)}, bson.M{"version": bson.M{"$exists": false}}}
	} else {
		filter["version"] = expectedVersion
	}
	next := *d
	next.Version = expectedVersion + 1
	res, err := m.col.UpdateOne(ctx, filter, bson.M{"$set": document.MutableFields(&next)})
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := m.col.CountDocuments(ctx, bson.M{"_id": key})
		if err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	d.Version = next.Version
	return nil
}

func (m *MongoRepo) Delete(ctx context.Context, id string) error {
	d, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	res, err := m.col.DeleteOne(ctx, bson.M{"_id": storeKey(d)})
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepo) Upsert(ctx context.Context, d *document.Document) (bool, error) {
	rec := document.ToRecord(d)
	key := rec["_id"]
	delete(rec, "_id")
	res, err := m.col.UpdateOne(ctx, bson.M{"_id": key}, bson.M{"$set": rec}, options.Update().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("upsert document: %w", err)
	}
	return res.UpsertedCount > 0, nil
}
