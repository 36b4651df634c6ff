package docstore

import (
	"reflect"
	"sort"
)

// Filter is an equality predicate on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Query selects documents of one collection.
type Query struct {
	Collection string
	Filters    []Filter
}

// NewQuery starts a query over a collection.
func NewQuery(collection string) Query {
	return Query{Collection: collection}
}

// Where adds an equality filter.
func (q Query) Where(field string, value any) Query {
	filters := make([]Filter, 0, len(q.Filters)+1)
	filters = append(filters, q.Filters...)
	q.Filters = append(filters, Filter{Field: field, Value: value})
	return q
}

// Matches evaluates the query against a document.
func (q Query) Matches(doc *Document) bool {
	if doc == nil || doc.Collection != q.Collection {
		return false
	}
	for _, f := range q.Filters {
		got, ok := doc.Fields[f.Field]
		if !ok || !equalValues(got, f.Value) {
			return false
		}
	}
	return true
}

// NormalizedFilters returns the filters as canonical field values, suitable for backends that
// compare encoded JSON.
func (q Query) NormalizedFilters() (Fields, error) {
	raw := Fields{}
	for _, f := range q.Filters {
		raw[f.Field] = f.Value
	}
	return Normalize(raw)
}

// SortByCreation orders documents oldest first, breaking ties by ID.
func SortByCreation(docs []*Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].CreateTime.Equal(docs[j].CreateTime) {
			return docs[i].CreateTime.Before(docs[j].CreateTime)
		}
		return docs[i].ID < docs[j].ID
	})
}

func equalValues(stored, wanted any) bool {
	normalized, err := Normalize(Fields{"v": wanted})
	if err != nil {
		return false
	}
	return reflect.DeepEqual(stored, normalized["v"])
}
