package docstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Rule restricts access to a collection of the in-memory store.
type Rule struct {
	DenyRead  bool
	DenyWrite bool
}

type MemoryOption func(*MemoryStore)

// WithClock sets the clock used for ServerTimestamp values.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithIDs sets the identifier generator used by Add.
func WithIDs(next func() string) MemoryOption {
	return func(s *MemoryStore) { s.newID = next }
}

// WithManualPush holds change notifications until Push is called, so tests
// can observe the window between a write and the next snapshot.
func WithManualPush() MemoryOption {
	return func(s *MemoryStore) { s.manual = true }
}

// MemoryStore is a process-local Store with live listeners.
type MemoryStore struct {
	mu        sync.Mutex
	cols      map[string]map[string]map[string]interface{}
	rules     map[string]Rule
	listeners map[*memoryStream]struct{}
	now       func() time.Time
	newID     func() string
	manual    bool
	closed    bool
}

func NewMemory(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		cols:      make(map[string]map[string]map[string]interface{}),
		rules:     make(map[string]Rule),
		listeners: make(map[*memoryStream]struct{}),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetRule replaces the access rule of a collection. Listeners of a collection
// that loses read access fail with ErrPermissionDenied.
func (s *MemoryStore) SetRule(collection string, rule Rule) {
	s.mu.Lock()
	s.rules[collection] = rule
	var affected []*memoryStream
	for l := range s.listeners {
		if l.collection == collection {
			affected = append(affected, l)
		}
	}
	s.mu.Unlock()

	if rule.DenyRead {
		for _, l := range affected {
			l.fail(fmt.Errorf("listen %s: %w", collection, ErrPermissionDenied))
		}
	}
}

// Push delivers pending changes of a collection to its listeners. Without
// WithManualPush every write pushes on its own.
func (s *MemoryStore) Push(collection string) {
	s.mu.Lock()
	var affected []*memoryStream
	for l := range s.listeners {
		if l.collection == collection {
			affected = append(affected, l)
		}
	}
	s.mu.Unlock()
	for _, l := range affected {
		l.markChanged()
	}
}

// ListenerCount reports the number of open listeners of a collection.
func (s *MemoryStore) ListenerCount(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for l := range s.listeners {
		if l.collection == collection {
			n++
		}
	}
	return n
}

func (s *MemoryStore) Query(_ context.Context, q Query) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rules[q.Collection].DenyRead {
		return nil, fmt.Errorf("query %s: %w", q.Collection, ErrPermissionDenied)
	}
	return s.evaluateLocked(q), nil
}

func (s *MemoryStore) Get(_ context.Context, collection, id string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rules[collection].DenyRead {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, ErrPermissionDenied)
	}
	fields, ok := s.cols[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Fields: cloneMap(fields)}, nil
}

func (s *MemoryStore) Listen(_ context.Context, q Query) (Stream, error) {
	return s.listen(q, ""), nil
}

func (s *MemoryStore) ListenDocument(_ context.Context, collection, id string) (Stream, error) {
	return s.listen(Query{Collection: collection}, id), nil
}

func (s *MemoryStore) listen(q Query, docID string) *memoryStream {
	l := &memoryStream{
		store:      s,
		query:      q,
		collection: q.Collection,
		docID:      docID,
		changed:    true,
		signal:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	s.mu.Lock()
	if s.closed {
		l.stopped = true
		close(l.done)
	} else {
		s.listeners[l] = struct{}{}
	}
	s.mu.Unlock()
	return l
}

func (s *MemoryStore) Add(_ context.Context, collection string, fields map[string]interface{}) (string, error) {
	s.mu.Lock()
	if s.rules[collection].DenyWrite {
		s.mu.Unlock()
		return "", fmt.Errorf("add %s: %w", collection, ErrPermissionDenied)
	}
	id := s.newID()
	col := s.cols[collection]
	if col == nil {
		col = make(map[string]map[string]interface{})
		s.cols[collection] = col
	}
	col[id] = s.resolveLocked(fields)
	s.mu.Unlock()

	s.written(collection)
	return id, nil
}

func (s *MemoryStore) Update(_ context.Context, collection, id string, fields map[string]interface{}) error {
	s.mu.Lock()
	if s.rules[collection].DenyWrite {
		s.mu.Unlock()
		return fmt.Errorf("update %s/%s: %w", collection, id, ErrPermissionDenied)
	}
	doc, ok := s.cols[collection][id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}
	for k, v := range s.resolveLocked(fields) {
		doc[k] = v
	}
	s.mu.Unlock()

	s.written(collection)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	if s.rules[collection].DenyWrite {
		s.mu.Unlock()
		return fmt.Errorf("delete %s/%s: %w", collection, id, ErrPermissionDenied)
	}
	if _, ok := s.cols[collection][id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("delete %s/%s: %w", collection, id, ErrNotFound)
	}
	delete(s.cols[collection], id)
	s.mu.Unlock()

	s.written(collection)
	return nil
}

func (s *MemoryStore) Merge(_ context.Context, collection, id string, fields map[string]interface{}) error {
	s.mu.Lock()
	if s.rules[collection].DenyWrite {
		s.mu.Unlock()
		return fmt.Errorf("merge %s/%s: %w", collection, id, ErrPermissionDenied)
	}
	col := s.cols[collection]
	if col == nil {
		col = make(map[string]map[string]interface{})
		s.cols[collection] = col
	}
	doc := col[id]
	if doc == nil {
		doc = make(map[string]interface{})
		col[id] = doc
	}
	mergeInto(doc, s.resolveLocked(fields))
	s.mu.Unlock()

	s.written(collection)
	return nil
}

func (s *MemoryStore) Close(_ context.Context) error {
	s.mu.Lock()
	s.closed = true
	listeners := make([]*memoryStream, 0, len(s.listeners))
	for l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()
	for _, l := range listeners {
		l.Stop()
	}
	return nil
}

func (s *MemoryStore) written(collection string) {
	if s.manual {
		return
	}
	s.Push(collection)
}

func (s *MemoryStore) resolveLocked(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case serverTimestamp:
			out[k] = s.now()
		case map[string]interface{}:
			out[k] = s.resolveLocked(val)
		default:
			out[k] = cloneValue(v)
		}
	}
	return out
}

func (s *MemoryStore) snapshot(l *memoryStream) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rules[l.collection].DenyRead {
		return Snapshot{}, fmt.Errorf("listen %s: %w", l.collection, ErrPermissionDenied)
	}
	snap := Snapshot{ReadAt: s.now()}
	if l.docID != "" {
		if fields, ok := s.cols[l.collection][l.docID]; ok {
			snap.Documents = []Document{{ID: l.docID, Fields: cloneMap(fields)}}
		}
		return snap, nil
	}
	snap.Documents = s.evaluateLocked(l.query)
	return snap, nil
}

func (s *MemoryStore) evaluateLocked(q Query) []Document {
	docs := make([]Document, 0, len(s.cols[q.Collection]))
	for id, fields := range s.cols[q.Collection] {
		if q.Where != nil {
			if v, ok := fields[q.Where.Field]; !ok || !reflect.DeepEqual(v, q.Where.Value) {
				continue
			}
		}
		if q.OrderBy != "" {
			if _, ok := fields[q.OrderBy]; !ok {
				continue
			}
		}
		docs = append(docs, Document{ID: id, Fields: cloneMap(fields)})
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if q.OrderBy == "" {
			return docs[i].ID < docs[j].ID
		}
		c := compareValues(docs[i].Fields[q.OrderBy], docs[j].Fields[q.OrderBy])
		if c == 0 {
			return docs[i].ID < docs[j].ID
		}
		if q.Direction == Desc {
			return c > 0
		}
		return c < 0
	})

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs
}

func (s *MemoryStore) removeListener(l *memoryStream) {
	s.mu.Lock()
	delete(s.listeners, l)
	s.mu.Unlock()
}

type memoryStream struct {
	store      *MemoryStore
	query      Query
	collection string
	docID      string

	mu        sync.Mutex
	changed   bool
	delivered bool
	last      Snapshot
	err       error
	stopped   bool
	signal    chan struct{}
	done      chan struct{}
}

func (l *memoryStream) markChanged() {
	l.mu.Lock()
	l.changed = true
	l.mu.Unlock()
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

func (l *memoryStream) fail(err error) {
	l.mu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.mu.Unlock()
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

func (l *memoryStream) Next(ctx context.Context) (Snapshot, error) {
	for {
		l.mu.Lock()
		if l.stopped {
			l.mu.Unlock()
			return Snapshot{}, ErrClosed
		}
		if l.err != nil {
			err := l.err
			l.mu.Unlock()
			return Snapshot{}, err
		}
		changed := l.changed
		l.changed = false
		l.mu.Unlock()

		if changed {
			snap, err := l.store.snapshot(l)
			if err != nil {
				l.fail(err)
				continue
			}
			l.mu.Lock()
			same := l.delivered && sameDocuments(l.last.Documents, snap.Documents)
			if !same {
				l.delivered = true
				l.last = snap
			}
			l.mu.Unlock()
			if !same {
				return snap, nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case <-l.done:
		case <-l.signal:
		}
	}
}

func (l *memoryStream) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	close(l.done)
	l.mu.Unlock()
	l.store.removeListener(l)
}

func sameDocuments(a, b []Document) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || !reflect.DeepEqual(a[i].Fields, b[i].Fields) {
			return false
		}
	}
	return true
}

func compareValues(a, b interface{}) int {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			}
			return 1
		}
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return 0
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func mergeInto(dst, src map[string]interface{}) {
	for k, v := range src {
		if sub, ok := v.(map[string]interface{}); ok {
			if existing, ok := dst[k].(map[string]interface{}); ok {
				mergeInto(existing, sub)
				continue
			}
			dst[k] = cloneMap(sub)
			continue
		}
		dst[k] = v
	}
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return cloneMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i := range val {
			out[i] = cloneValue(val[i])
		}
		return out
	}
	return v
}
