// Package mongostore implements docstore.Store on MongoDB. Live listeners
// are change streams that re-run the query on every change, so the server
// must run as a replica set.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"junks-backend/internal/docstore"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo error codes that mean the caller lacks access.
const (
	codeUnauthorized         = 13
	codeAuthenticationFailed = 18
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

func New(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{client: client, db: db}
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	cursor, err := s.db.Collection(q.Collection).Find(ctx, filterFor(q), findOptions(q))
	if err != nil {
		return nil, mapError(err)
	}
	defer cursor.Close(ctx)

	docs := make([]docstore.Document, 0)
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", q.Collection, err)
		}
		docs = append(docs, toDocument(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, mapError(err)
	}
	return docs, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	var raw bson.M
	if err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw); err != nil {
		return docstore.Document{}, mapError(err)
	}
	return toDocument(raw), nil
}

func (s *Store) Listen(ctx context.Context, q docstore.Query) (docstore.Stream, error) {
	cs, err := s.db.Collection(q.Collection).Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", q.Collection, mapError(err))
	}
	return &stream{store: s, query: q, cs: cs, first: true}, nil
}

func (s *Store) ListenDocument(ctx context.Context, collection, id string) (docstore.Stream, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"documentKey._id": id}}},
	}
	cs, err := s.db.Collection(collection).Watch(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("watch %s/%s: %w", collection, id, mapError(err))
	}
	return &stream{store: s, query: docstore.Query{Collection: collection}, docID: id, cs: cs, first: true}, nil
}

func (s *Store) Add(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	id := primitive.NewObjectID().Hex()
	set, stamps := splitTimestamps(fields)
	col := s.db.Collection(collection)

	if len(stamps) == 0 {
		set["_id"] = id
		if _, err := col.InsertOne(ctx, set); err != nil {
			return "", mapError(err)
		}
		return id, nil
	}

	// $currentDate lets the server stamp the document at insert time.
	update := bson.M{"$setOnInsert": set, "$currentDate": stamps}
	if _, err := col.UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true)); err != nil {
		return "", mapError(err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	set, stamps := splitTimestamps(fields)
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(stamps) > 0 {
		update["$currentDate"] = stamps
	}
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update %s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapError(err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("delete %s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	return nil
}

func (s *Store) Merge(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	flat := make(map[string]interface{})
	flatten("", fields, flat)
	set, stamps := splitTimestamps(flat)
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(stamps) > 0 {
		update["$currentDate"] = stamps
	}
	if len(update) == 0 {
		return nil
	}
	_, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	return mapError(err)
}

func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

type stream struct {
	store *Store
	query docstore.Query
	docID string
	cs    *mongo.ChangeStream
	first bool

	mu      sync.Mutex
	stopped bool
}

func (st *stream) Next(ctx context.Context) (docstore.Snapshot, error) {
	if st.isStopped() {
		return docstore.Snapshot{}, docstore.ErrClosed
	}
	if st.first {
		st.first = false
		return st.snapshot(ctx)
	}
	if st.cs.Next(ctx) {
		return st.snapshot(ctx)
	}
	if st.isStopped() {
		return docstore.Snapshot{}, docstore.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return docstore.Snapshot{}, err
	}
	if err := st.cs.Err(); err != nil {
		return docstore.Snapshot{}, mapError(err)
	}
	return docstore.Snapshot{}, docstore.ErrClosed
}

func (st *stream) snapshot(ctx context.Context) (docstore.Snapshot, error) {
	snap := docstore.Snapshot{ReadAt: time.Now().UTC()}
	if st.docID != "" {
		doc, err := st.store.Get(ctx, st.query.Collection, st.docID)
		if errors.Is(err, docstore.ErrNotFound) {
			return snap, nil
		}
		if err != nil {
			return docstore.Snapshot{}, err
		}
		snap.Documents = []docstore.Document{doc}
		return snap, nil
	}
	docs, err := st.store.Query(ctx, st.query)
	if err != nil {
		return docstore.Snapshot{}, err
	}
	snap.Documents = docs
	return snap, nil
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
	st.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = st.cs.Close(ctx)
}

func filterFor(q docstore.Query) bson.M {
	filter := bson.M{}
	if q.OrderBy != "" {
		// documents without the ordering field are not part of an ordered result
		filter[q.OrderBy] = bson.M{"$exists": true}
	}
	if q.Where != nil {
		filter[q.Where.Field] = q.Where.Value
	}
	return filter
}

func findOptions(q docstore.Query) *options.FindOptions {
	opts := options.Find()
	dir := 1
	if q.Direction == docstore.Desc {
		dir = -1
	}
	if q.OrderBy != "" {
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}, {Key: "_id", Value: 1}})
	} else {
		opts.SetSort(bson.D{{Key: "_id", Value: 1}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return opts
}

func splitTimestamps(fields map[string]interface{}) (bson.M, bson.M) {
	set := bson.M{}
	stamps := bson.M{}
	for k, v := range fields {
		if docstore.IsServerTimestamp(v) {
			stamps[k] = bson.M{"$type": "date"}
			continue
		}
		set[k] = v
	}
	return set, stamps
}

func flatten(prefix string, in map[string]interface{}, out map[string]interface{}) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]interface{}); ok && len(sub) > 0 {
			flatten(key, sub, out)
			continue
		}
		out[key] = v
	}
}

func toDocument(raw bson.M) docstore.Document {
	doc := docstore.Document{Fields: make(map[string]interface{}, len(raw))}
	for k, v := range raw {
		if k == "_id" {
			doc.ID = idString(v)
			continue
		}
		doc.Fields[k] = normalize(v)
	}
	return doc
}

func idString(v interface{}) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.ObjectID:
		return val.Hex()
	case int32:
		return int64(val)
	case bson.M:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[k] = normalize(inner)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(val))
		for _, e := range val {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(val))
		for i := range val {
			out[i] = normalize(val[i])
		}
		return out
	}
	return v
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return docstore.ErrNotFound
	}
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorCode(codeUnauthorized) || se.HasErrorCode(codeAuthenticationFailed)) {
		return fmt.Errorf("%w: %s", docstore.ErrPermissionDenied, err.Error())
	}
	if strings.Contains(err.Error(), "not authorized") {
		return fmt.Errorf("%w: %s", docstore.ErrPermissionDenied, err.Error())
	}
	return err
}
