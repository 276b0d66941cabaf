package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo is the production Store backed by a MongoDB database, one
// collection per logical collection.
//
// Documents are stored JSON-shaped: payloads pass through JSON on the
// way in and out, so values round-trip identically between the Mongo
// and in-memory implementations (timestamps stay RFC 3339 strings,
// numbers stay plain).
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	logger *log.Logger
}

// NewMongo connects to the given MongoDB URI and database. Live
// queries require the server to run as a replica set (change
// streams).
//
// If logger is nil, a default logger writing to stderr is used.
func NewMongo(ctx context.Context, uri, database string, logger *log.Logger) (*Mongo, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Mongo{
		client: client,
		db:     client.Database(database),
		logger: logger,
	}, nil
}

// Close disconnects from the server.
func (m *Mongo) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from mongodb: %w", err)
	}
	return nil
}

// PutDocument implements Store.
func (m *Mongo) PutDocument(ctx context.Context, collection, id string, doc any) error {
	body, err := toDocument(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s/%s: %w", collection, id, err)
	}

	_, err = m.db.Collection(collection).ReplaceOne(ctx,
		bson.M{"_id": id}, body, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to put document %s/%s: %w", collection, id, err)
	}
	return nil
}

// GetDocument implements Store.
func (m *Mongo) GetDocument(ctx context.Context, collection, id string, out any) error {
	var body bson.M
	err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&body)
	if err == mongo.ErrNoDocuments {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	return fromDocument(body, out)
}

// DeleteDocument implements Store.
func (m *Mongo) DeleteDocument(ctx context.Context, collection, id string) error {
	_, err := m.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}
	return nil
}

// AppendMember implements Store.
func (m *Mongo) AppendMember(ctx context.Context, householdID, uid string) error {
	res, err := m.db.Collection(CollectionHouseholds).UpdateOne(ctx,
		bson.M{"_id": householdID},
		bson.M{"$addToSet": bson.M{"members": uid}})
	if err != nil {
		return fmt.Errorf("failed to add member to household %s: %w", householdID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveMember implements Store.
func (m *Mongo) RemoveMember(ctx context.Context, householdID, uid string) error {
	_, err := m.db.Collection(CollectionHouseholds).UpdateOne(ctx,
		bson.M{"_id": householdID},
		bson.M{"$pull": bson.M{"members": uid}})
	if err != nil {
		return fmt.Errorf("failed to remove member from household %s: %w", householdID, err)
	}
	return nil
}

// Subscribe implements Store using change streams. The current
// matching documents are replayed as ChangeAdded, then the stream is
// consumed until Stop.
//
// Delete events carry no document, so they cannot be filtered by
// household server-side; they are delivered for the whole collection.
// Down-sync treats remote deletes as unconditional, so the wider
// delivery is harmless.
func (m *Mongo) Subscribe(ctx context.Context, collection, householdID string, h Handler) (Subscription, error) {
	col := m.db.Collection(collection)

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"$or": []bson.M{
				{"operationType": "delete"},
				{"fullDocument.householdId": householdID},
			},
		}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	streamCtx, cancel := context.WithCancel(context.Background())
	stream, err := col.Watch(streamCtx, pipeline, opts)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to watch %s: %w", collection, err)
	}

	// Replay the current matching set so a fresh device converges
	// without waiting for new writes.
	cursor, err := col.Find(ctx, bson.M{"householdId": householdID})
	if err != nil {
		cancel()
		_ = stream.Close(context.Background())
		return nil, fmt.Errorf("failed to query %s snapshot: %w", collection, err)
	}
	for cursor.Next(ctx) {
		var body bson.M
		if err := cursor.Decode(&body); err != nil {
			m.logger.Printf("Warning: failed to decode %s snapshot document: %v", collection, err)
			continue
		}
		m.emit(h, ChangeAdded, collection, body)
	}
	if err := cursor.Err(); err != nil {
		cancel()
		_ = stream.Close(context.Background())
		return nil, fmt.Errorf("failed to read %s snapshot: %w", collection, err)
	}
	_ = cursor.Close(ctx)

	sub := &mongoSub{cancel: cancel, done: make(chan struct{})}
	go m.consume(streamCtx, stream, collection, h, sub)

	return sub, nil
}

type mongoSub struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop implements Subscription. It blocks until the stream goroutine
// has exited, so no handler call can follow the return.
func (s *mongoSub) Stop() {
	s.cancel()
	<-s.done
}

func (m *Mongo) consume(ctx context.Context, stream *mongo.ChangeStream, collection string, h Handler, sub *mongoSub) {
	defer close(sub.done)
	defer func() { _ = stream.Close(context.Background()) }()

	for stream.Next(ctx) {
		var ev struct {
			OperationType string `bson:"operationType"`
			DocumentKey   struct {
				ID string `bson:"_id"`
			} `bson:"documentKey"`
			FullDocument bson.M `bson:"fullDocument"`
		}
		if err := stream.Decode(&ev); err != nil {
			m.logger.Printf("Warning: failed to decode %s change event: %v", collection, err)
			continue
		}

		switch ev.OperationType {
		case "insert":
			m.emit(h, ChangeAdded, collection, ev.FullDocument)
		case "replace", "update":
			if ev.FullDocument == nil {
				// Document deleted between the update and the lookup.
				continue
			}
			m.emit(h, ChangeModified, collection, ev.FullDocument)
		case "delete":
			h(Change{Type: ChangeRemoved, Collection: collection, ID: ev.DocumentKey.ID})
		}
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		m.logger.Printf("Change stream for %s ended: %v", collection, err)
	}
}

func (m *Mongo) emit(h Handler, typ ChangeType, collection string, body bson.M) {
	id, _ := body["_id"].(string)
	delete(body, "_id")

	doc, err := json.Marshal(body)
	if err != nil {
		m.logger.Printf("Warning: failed to encode %s/%s: %v", collection, id, err)
		return
	}
	h(Change{Type: typ, Collection: collection, ID: id, Doc: doc})
}

// toDocument converts an arbitrary payload to a BSON map via JSON, so
// stored documents match the JSON wire shape exactly.
func toDocument(doc any) (bson.M, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var body map[string]interface{}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, err
	}
	return body, nil
}

// fromDocument converts a stored BSON map back into out via JSON.
func fromDocument(body bson.M, out any) error {
	delete(body, "_id")
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}
