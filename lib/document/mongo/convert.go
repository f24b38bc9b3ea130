package mongo

import (
	"github.com/ValentinKolb/dFacade/lib/document"
	"go.mongodb.org/mongo-driver/bson"
)

// fromBSON converts a decoded mongo document into a document.Document.
// The generated _id is dropped, documents are addressed by the identifier field only.
// Embedded documents (bson.D or bson.M) become plain maps, arrays become []any.
func fromBSON(raw bson.M) document.Document {
	doc := make(document.Document, len(raw))
	for k, v := range raw {
		if k == objectIDField {
			continue
		}
		doc[k] = fromValue(v)
	}
	return doc
}

func fromValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = fromValue(e)
		}
		return m
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = fromValue(e.Value)
		}
		return m
	case bson.A:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = fromValue(e)
		}
		return s
	default:
		return v
	}
}

// toBSON returns doc as a bson.M, nested documents are encoded by the driver
func toBSON(doc document.Document) bson.M {
	m := make(bson.M, len(doc))
	for k, v := range doc {
		m[k] = v
	}
	return m
}
