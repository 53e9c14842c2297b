// Package firestorestore implements docstore.Store on Cloud Firestore using
// its native snapshot listeners.
package firestorestore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"junks-backend/internal/docstore"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// NewApp initialises the Firebase app shared by the store and the ID-token
// verifier.
func NewApp(ctx context.Context, projectID, credentialsFile string) (*firebase.App, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	return app, nil
}

type Store struct {
	client *firestore.Client
}

func New(ctx context.Context, app *firebase.App) (*Store, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) query(q docstore.Query) firestore.Query {
	fq := s.client.Collection(q.Collection).Query
	if q.Where != nil {
		fq = fq.Where(q.Where.Field, "==", q.Where.Value)
	}
	dir := firestore.Asc
	if q.Direction == docstore.Desc {
		dir = firestore.Desc
	}
	if q.OrderBy != "" {
		fq = fq.OrderBy(q.OrderBy, dir)
	} else {
		fq = fq.OrderBy(firestore.DocumentID, firestore.Asc)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}
	return fq
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	iter := s.query(q).Documents(ctx)
	defer iter.Stop()

	docs := make([]docstore.Document, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, mapError(err)
		}
		docs = append(docs, toDocument(snap))
	}
	return docs, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return docstore.Document{}, mapError(err)
	}
	return toDocument(snap), nil
}

func (s *Store) Listen(ctx context.Context, q docstore.Query) (docstore.Stream, error) {
	listenCtx, cancel := context.WithCancel(ctx)
	iter := s.query(q).Snapshots(listenCtx)
	st := newStream(cancel, iter.Stop)
	go st.run(func() (docstore.Snapshot, error) {
		qs, err := iter.Next()
		if err != nil {
			return docstore.Snapshot{}, err
		}
		snaps, err := qs.Documents.GetAll()
		if err != nil {
			return docstore.Snapshot{}, err
		}
		out := docstore.Snapshot{ReadAt: qs.ReadTime, Documents: make([]docstore.Document, 0, len(snaps))}
		for _, ds := range snaps {
			out.Documents = append(out.Documents, toDocument(ds))
		}
		return out, nil
	})
	return st, nil
}

func (s *Store) ListenDocument(ctx context.Context, collection, id string) (docstore.Stream, error) {
	listenCtx, cancel := context.WithCancel(ctx)
	iter := s.client.Collection(collection).Doc(id).Snapshots(listenCtx)
	st := newStream(cancel, iter.Stop)
	go st.run(func() (docstore.Snapshot, error) {
		ds, err := iter.Next()
		// a missing document arrives as a NotFound error with a non-exists snapshot
		if ds != nil && !ds.Exists() {
			return docstore.Snapshot{ReadAt: ds.ReadTime}, nil
		}
		if err != nil {
			return docstore.Snapshot{}, err
		}
		return docstore.Snapshot{ReadAt: ds.ReadTime, Documents: []docstore.Document{toDocument(ds)}}, nil
	})
	return st, nil
}

func (s *Store) Add(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, resolve(fields))
	if err != nil {
		return "", mapError(err)
	}
	return ref.ID, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range resolve(fields) {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	if _, err := s.client.Collection(collection).Doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, mapError(err))
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx, firestore.Exists); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, mapError(err))
	}
	return nil
}

func (s *Store) Merge(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, resolve(fields), firestore.MergeAll); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) Close(context.Context) error {
	return s.client.Close()
}

type result struct {
	snap docstore.Snapshot
	err  error
}

// stream adapts Firestore's blocking iterators to docstore.Stream. A single
// goroutine drives the iterator; Next only ever sees the newest result.
type stream struct {
	cancel   context.CancelFunc
	stopIter func()
	results  chan result
	done     chan struct{}

	mu       sync.Mutex
	stopped  bool
	terminal error
}

func newStream(cancel context.CancelFunc, stopIter func()) *stream {
	return &stream{
		cancel:   cancel,
		stopIter: stopIter,
		results:  make(chan result, 1),
		done:     make(chan struct{}),
	}
}

func (st *stream) run(next func() (docstore.Snapshot, error)) {
	for {
		snap, err := next()
		if err != nil {
			if errors.Is(err, iterator.Done) || st.isStopped() {
				return
			}
			st.publish(result{err: mapError(err)})
			return
		}
		st.publish(result{snap: snap})
	}
}

func (st *stream) publish(r result) {
	for {
		select {
		case st.results <- r:
			return
		case <-st.done:
			return
		default:
		}
		// drop the undelivered snapshot in favour of the newer one
		select {
		case <-st.results:
		default:
		}
	}
}

func (st *stream) Next(ctx context.Context) (docstore.Snapshot, error) {
	st.mu.Lock()
	if st.terminal != nil {
		err := st.terminal
		st.mu.Unlock()
		return docstore.Snapshot{}, err
	}
	st.mu.Unlock()

	select {
	case r := <-st.results:
		if r.err != nil {
			st.mu.Lock()
			st.terminal = r.err
			st.mu.Unlock()
			return docstore.Snapshot{}, r.err
		}
		return r.snap, nil
	case <-st.done:
		return docstore.Snapshot{}, docstore.ErrClosed
	case <-ctx.Done():
		return docstore.Snapshot{}, ctx.Err()
	}
}

func (st *stream) isStopped() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.stopped
}

func (st *stream) Stop() {
	st.mu.Lock()
	if st.stopped {
		st.mu.Unlock()
		return
	}
	st.stopped = true
	st.terminal = docstore.ErrClosed
	close(st.done)
	st.mu.Unlock()

	st.cancel()
	st.stopIter()
}

func resolve(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if docstore.IsServerTimestamp(v) {
			out[k] = firestore.ServerTimestamp
			continue
		}
		if sub, ok := v.(map[string]interface{}); ok {
			out[k] = resolve(sub)
			continue
		}
		out[k] = v
	}
	return out
}

func toDocument(snap *firestore.DocumentSnapshot) docstore.Document {
	return docstore.Document{ID: snap.Ref.ID, Fields: snap.Data()}
}

func mapError(err error) error {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%w: %s", docstore.ErrPermissionDenied, status.Convert(err).Message())
	case codes.NotFound:
		return docstore.ErrNotFound
	}
	return err
}
