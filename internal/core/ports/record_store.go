package ports

import "context"

// Filter is an equality predicate over document fields.
type Filter map[string]any

// Document is a partial field set.
type Document map[string]any

// ThresholdSet assigns Set only when the post-update value of Field is at
// least Min. It is evaluated in the same atomic step as the rest of the update.
type ThresholdSet struct {
	Field string
	Min   int64
	Set   Document
}

// Update describes a partial, per-document atomic modification.
type Update struct {
	Set  Document
	Inc  map[string]int64
	When *ThresholdSet
	// Upsert inserts a document built from the filter when nothing matches.
	Upsert bool
}

// RecordStore is the document store holding user and settings records.
//
// Implementations return domain.ErrNotFound when no document matches,
// domain.ErrConflict on a unique-key violation and wrap every other failure
// with domain.ErrStoreUnavailable.
type RecordStore interface {
	// FindOne decodes the first document matching filter into out.
	FindOne(ctx context.Context, collection string, filter Filter, out any) error
	// InsertOne stores doc, which must carry its own _id.
	InsertOne(ctx context.Context, collection string, doc any) error
	// UpdateOne applies update to the first match and, when out is non-nil,
	// decodes the updated document into it.
	UpdateOne(ctx context.Context, collection string, filter Filter, update Update, out any) error
	// Find decodes every match into out (a pointer to a slice), keeping only
	// the projected fields when projection is non-empty.
	Find(ctx context.Context, collection string, filter Filter, projection []string, out any) error
}
