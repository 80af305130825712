package odm

import (
	"context"
	"fmt"

	"github.com/arthur-debert/cookbook/search"
)

type operation int

const (
	opNone operation = iota
	opFind
	opFindOne
	opFindByID
	opCount
	opSearch
)

// Query is a declarative query over one Model. The operation is selected by
// Find, FindOne, FindByID, Count or Search (the last call wins); the other
// methods refine it. Builder methods modify and return the receiver.
type Query struct {
	model    *Model
	op       operation
	filter   Filter
	text     string
	sort     []SortKey
	limit    int
	skip     int
	populate []string
}

// Find selects every document matching filter
func (q *Query) Find(filter Filter) *Query {
	q.op, q.filter = opFind, filter
	return q
}

// FindOne selects the first document matching filter
func (q *Query) FindOne(filter Filter) *Query {
	q.op, q.filter = opFindOne, filter
	return q
}

// FindByID selects the document with id
func (q *Query) FindByID(id string) *Query {
	q.op, q.filter = opFindByID, Filter{"id": id}
	return q
}

// Count counts the documents matching filter
func (q *Query) Count(filter Filter) *Query {
	q.op, q.filter = opCount, filter
	return q
}

// Search selects the documents matching filter that score above zero for
// text, most relevant first
func (q *Query) Search(text string, filter Filter) *Query {
	q.op, q.filter, q.text = opSearch, filter, text
	return q
}

// Sort sets the sort keys, applied in order
func (q *Query) Sort(keys ...SortKey) *Query {
	q.sort = keys
	return q
}

// Limit caps the number of results; a negative n removes the cap
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Skip drops the first n results
func (q *Query) Skip(n int) *Query {
	q.skip = n
	return q
}

// Populate resolves the references at paths on every result
func (q *Query) Populate(paths ...string) *Query {
	q.populate = append(q.populate, paths...)
	return q
}

// Exec runs the query. It returns an int for Count, a *Document for FindOne
// and FindByID, and a []*Document otherwise. When FindOne or FindByID match
// nothing the result is an untyped nil.
func (q *Query) Exec(ctx context.Context) (interface{}, error) {
	docs, count, err := q.run(ctx)
	if err != nil {
		return nil, err
	}
	switch q.op {
	case opCount:
		return count, nil
	case opFindOne, opFindByID:
		if len(docs) == 0 {
			return nil, nil
		}
		return docs[0], nil
	}
	return docs, nil
}

// ExecAll runs the query and returns its documents
func (q *Query) ExecAll(ctx context.Context) ([]*Document, error) {
	if q.op == opCount {
		return nil, fmt.Errorf("query %s: count returns no documents", q.model.name)
	}
	docs, _, err := q.run(ctx)
	return docs, err
}

// ExecOne runs the query and returns its first document, or nil
func (q *Query) ExecOne(ctx context.Context) (*Document, error) {
	docs, err := q.ExecAll(ctx)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// ExecCount runs the query and returns the number of results
func (q *Query) ExecCount(ctx context.Context) (int, error) {
	docs, count, err := q.run(ctx)
	if err != nil {
		return 0, err
	}
	if q.op == opCount {
		return count, nil
	}
	return len(docs), nil
}

func (q *Query) run(ctx context.Context) ([]*Document, int, error) {
	if q.op == opNone {
		return nil, 0, fmt.Errorf("query %s: %w", q.model.name, ErrNoOperation)
	}

	snapshot, err := q.model.Fetch(ctx)
	if err != nil {
		return nil, 0, err
	}

	seen := make(map[string]bool, len(snapshot))
	docs := make([]*Document, 0, len(snapshot))
	for _, d := range snapshot {
		if seen[d.ID()] {
			continue
		}
		seen[d.ID()] = true
		if q.filter.matches(d) {
			docs = append(docs, d)
		}
	}

	if q.op == opCount {
		return nil, len(docs), nil
	}

	sortDocuments(docs, q.sort)

	text := q.text
	if q.op != opSearch {
		text = q.filter.searchText()
	}
	if text != "" {
		docs = q.rank(docs, text)
	}

	docs = q.page(docs)

	for _, d := range docs {
		for _, path := range q.populate {
			if err := d.Populate(ctx, path); err != nil {
				return nil, 0, err
			}
		}
	}
	return docs, len(docs), nil
}

func (q *Query) rank(docs []*Document, text string) []*Document {
	fields := q.model.schema.SearchableFields()
	ranked := search.Rank(docs, text, func(d *Document) []string {
		var texts []string
		for _, f := range fields {
			texts = append(texts, stringsOf(d.Get(f))...)
		}
		return texts
	})

	out := make([]*Document, len(ranked))
	for i, r := range ranked {
		out[i] = r.Item
	}
	return out
}

func (q *Query) page(docs []*Document) []*Document {
	if q.skip > 0 {
		if q.skip >= len(docs) {
			return docs[:0]
		}
		docs = docs[q.skip:]
	}
	limit := q.limit
	if q.op == opFindOne || q.op == opFindByID {
		limit = 1
	}
	if limit >= 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}
