package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mongoadmin/console/internal/core/domain"
	"github.com/mongoadmin/console/internal/core/ports"
)

// RecordStore implements ports.RecordStore on a MongoDB database.
type RecordStore struct {
	db *mongo.Database
}

func NewRecordStore(db *mongo.Database) *RecordStore {
	return &RecordStore{db: db}
}

// Ping checks that the primary is reachable.
func (s *RecordStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return s.db.Client().Ping(ctx, nil)
}

func (s *RecordStore) FindOne(ctx context.Context, collection string, filter ports.Filter, out any) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err := s.db.Collection(collection).FindOne(ctx, bson.M(filter)).Decode(out)
	return mapErr("find "+collection, err)
}

func (s *RecordStore) InsertOne(ctx context.Context, collection string, doc any) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := s.db.Collection(collection).InsertOne(ctx, doc)
	return mapErr("insert "+collection, err)
}

// UpdateOne applies update to the first document matching filter. A
// conditional update is sent as an aggregation pipeline so the threshold is
// evaluated against the incremented value in the same server-side operation.
func (s *RecordStore) UpdateOne(ctx context.Context, collection string, filter ports.Filter, update ports.Update, out any) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	coll := s.db.Collection(collection)
	doc := buildUpdate(update)

	if out == nil {
		res, err := coll.UpdateOne(ctx, bson.M(filter), doc, options.Update().SetUpsert(update.Upsert))
		if err != nil {
			return mapErr("update "+collection, err)
		}
		if res.MatchedCount == 0 && res.UpsertedCount == 0 {
			return domain.ErrNotFound
		}
		return nil
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(update.Upsert).
		SetReturnDocument(options.After)
	err := coll.FindOneAndUpdate(ctx, bson.M(filter), doc, opts).Decode(out)
	return mapErr("update "+collection, err)
}

func (s *RecordStore) Find(ctx context.Context, collection string, filter ports.Filter, projection []string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find()
	if len(projection) > 0 {
		proj := make(bson.D, 0, len(projection))
		for _, f := range projection {
			proj = append(proj, bson.E{Key: f, Value: 1})
		}
		opts.SetProjection(proj)
	}

	cur, err := s.db.Collection(collection).Find(ctx, bson.M(filter), opts)
	if err != nil {
		return mapErr("find "+collection, err)
	}
	return mapErr("decode "+collection, cur.All(ctx, out))
}

// buildUpdate returns a classic operator document, or a two-stage pipeline
// when the update carries a threshold condition.
func buildUpdate(u ports.Update) any {
	if u.When == nil {
		doc := bson.M{}
		if len(u.Set) > 0 {
			doc["$set"] = bson.M(u.Set)
		}
		if len(u.Inc) > 0 {
			doc["$inc"] = u.Inc
		}
		return doc
	}

	first := bson.M{}
	for k, v := range u.Set {
		first[k] = bson.M{"$literal": v}
	}
	for k, delta := range u.Inc {
		first[k] = bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$" + k, 0}}, delta}}
	}

	second := bson.M{}
	for k, v := range u.When.Set {
		second[k] = bson.M{"$cond": bson.A{
			bson.M{"$gte": bson.A{"$" + u.When.Field, u.When.Min}},
			bson.M{"$literal": v},
			"$" + k,
		}}
	}

	pipeline := []bson.M{}
	if len(first) > 0 {
		pipeline = append(pipeline, bson.M{"$set": first})
	}
	if len(second) > 0 {
		pipeline = append(pipeline, bson.M{"$set": second})
	}
	return pipeline
}

func mapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isNoDocuments(err):
		return domain.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return domain.ErrConflict
	default:
		return fmt.Errorf("%w: mongo %s: %v", domain.ErrStoreUnavailable, op, err)
	}
}
