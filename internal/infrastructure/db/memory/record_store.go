// Package memory provides a RecordStore that keeps bson-encoded documents in
// process memory. It backs tests and single-process development runs.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mongoadmin/console/internal/core/domain"
	"github.com/mongoadmin/console/internal/core/ports"
)

// RecordStore is a mutex-guarded document store. Every update runs under
// the lock, so single-document updates are atomic as in MongoDB.
type RecordStore struct {
	mu          sync.Mutex
	collections map[string][]bson.M
	unique      map[string][]string
}

// Option configures a RecordStore.
type Option func(*RecordStore)

// WithUniqueIndex rejects inserts that repeat a value of field in collection.
func WithUniqueIndex(collection string, fields ...string) Option {
	return func(s *RecordStore) {
		s.unique[collection] = append(s.unique[collection], fields...)
	}
}

func NewRecordStore(opts ...Option) *RecordStore {
	s := &RecordStore{
		collections: make(map[string][]bson.M),
		unique:      make(map[string][]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewUserStore returns a store with the unique indexes the users collection needs.
func NewUserStore() *RecordStore {
	return NewRecordStore(WithUniqueIndex(domain.CollectionUsers, "username", "email"))
}

func (s *RecordStore) FindOne(_ context.Context, collection string, filter ports.Filter, out any) error {
	f, err := toDoc(filter)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.first(collection, f)
	if doc == nil {
		return domain.ErrNotFound
	}
	return decode(doc, out)
}

func (s *RecordStore) InsertOne(_ context.Context, collection string, v any) error {
	doc, err := toDoc(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(collection, doc)
}

func (s *RecordStore) UpdateOne(_ context.Context, collection string, filter ports.Filter, update ports.Update, out any) error {
	f, err := toDoc(filter)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.first(collection, f)
	if doc == nil {
		if !update.Upsert {
			return domain.ErrNotFound
		}
		doc = f
		if err := apply(doc, update); err != nil {
			return err
		}
		if err := s.insert(collection, doc); err != nil {
			return err
		}
	} else if err := apply(doc, update); err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	return decode(doc, out)
}

func (s *RecordStore) Find(_ context.Context, collection string, filter ports.Filter, projection []string, out any) error {
	f, err := toDoc(filter)
	if err != nil {
		return err
	}

	s.mu.Lock()
	matched := make(bson.A, 0)
	for _, doc := range s.collections[collection] {
		if matches(doc, f) {
			matched = append(matched, project(doc, projection))
		}
	}
	s.mu.Unlock()

	t, data, err := bson.MarshalValue(matched)
	if err != nil {
		return fmt.Errorf("memory store: encode result: %w", err)
	}
	if err := (bson.RawValue{Type: t, Value: data}).Unmarshal(out); err != nil {
		return fmt.Errorf("memory store: decode result: %w", err)
	}
	return nil
}

// Len reports how many documents collection holds.
func (s *RecordStore) Len(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.collections[collection])
}

func (s *RecordStore) first(collection string, filter bson.M) bson.M {
	for _, doc := range s.collections[collection] {
		if matches(doc, filter) {
			return doc
		}
	}
	return nil
}

func (s *RecordStore) insert(collection string, doc bson.M) error {
	if id, ok := doc["_id"]; !ok || id == "" {
		doc["_id"] = uuid.NewString()
	}
	keys := append([]string{"_id"}, s.unique[collection]...)
	for _, existing := range s.collections[collection] {
		for _, k := range keys {
			if v, ok := doc[k]; ok && reflect.DeepEqual(existing[k], v) {
				return domain.ErrConflict
			}
		}
	}
	s.collections[collection] = append(s.collections[collection], doc)
	return nil
}

func apply(doc bson.M, u ports.Update) error {
	set, err := toDoc(u.Set)
	if err != nil {
		return err
	}
	for k, v := range set {
		doc[k] = v
	}
	for k, delta := range u.Inc {
		doc[k] = asInt64(doc[k]) + delta
	}
	if u.When != nil && asInt64(doc[u.When.Field]) >= u.When.Min {
		cond, err := toDoc(u.When.Set)
		if err != nil {
			return err
		}
		for k, v := range cond {
			doc[k] = v
		}
	}
	return nil
}

func matches(doc, filter bson.M) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok {
			if want == nil {
				continue
			}
			return false
		}
		if !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func project(doc bson.M, fields []string) bson.M {
	if len(fields) == 0 {
		return doc
	}
	out := bson.M{"_id": doc["_id"]}
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

// toDoc normalises v through a bson round trip so stored values and filter
// values share the same representation.
func toDoc(v any) (bson.M, error) {
	if v == nil {
		return bson.M{}, nil
	}
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("memory store: encode: %w", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("memory store: decode: %w", err)
	}
	if doc == nil {
		doc = bson.M{}
	}
	return doc, nil
}

func decode(doc bson.M, out any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("memory store: encode: %w", err)
	}
	if err := bson.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("memory store: decode: %w", err)
	}
	return nil
}
