package document

import (
	"context"
	"github.com/ValentinKolb/dFacade/lib/database"
)

// Document is a JSON-like document
type Document map[string]any

// Clone returns a deep copy of d (nested maps and slices are copied)
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case Document:
		return val.Clone()
	case map[string]any:
		return map[string]any(Document(val).Clone())
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []Document:
		out := make([]Document, len(val))
		for i, item := range val {
			out[i] = item.Clone()
		}
		return out
	default:
		return v
	}
}

// Backend is the contract between the document facade and a driver.
// Documents are matched by a single field (the identifier field) equal to a value.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Type returns the backend family
	Type() database.BackendType

	// FindOne returns the first document whose field equals value
	FindOne(ctx context.Context, collection, field string, value any) (doc Document, found bool, err error)

	// FindAll returns every document of the collection
	FindAll(ctx context.Context, collection string) ([]Document, error)

	// Count returns the number of documents in the collection
	Count(ctx context.Context, collection string) (int64, error)

	// InsertOne inserts a single document
	InsertOne(ctx context.Context, collection string, doc Document) error

	// InsertMany inserts all documents in one bulk operation
	InsertMany(ctx context.Context, collection string, docs []Document) error

	// ReplaceOne replaces the first document whose field equals value
	ReplaceOne(ctx context.Context, collection, field string, value any, doc Document) (matched bool, err error)

	// UpdateOne merges set into the first document whose field equals value and returns the result
	UpdateOne(ctx context.Context, collection, field string, value any, set Document) (updated Document, matched bool, err error)

	// DeleteOne deletes the first document whose field equals value
	DeleteOne(ctx context.Context, collection, field string, value any) (deleted bool, err error)

	// DeleteMany deletes every document whose field equals value
	DeleteMany(ctx context.Context, collection, field string, value any) (deleted int64, err error)

	// Rename renames a collection
	Rename(ctx context.Context, collection, newName string) error

	// Drop deletes a collection with all its documents
	Drop(ctx context.Context, collection string) error

	// Ping issues a round-trip to the server
	Ping(ctx context.Context) error

	// Close releases the client
	Close() error
}
