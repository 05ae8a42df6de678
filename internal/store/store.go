// Package store implements the persistent-store external interface
// (spec.md §6) against MongoDB: the `memory`, `usage`, and
// `iterationLog` collections.
package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nexusforge/agentloop/internal/iterlog"
	"github.com/nexusforge/agentloop/internal/memory"
	"github.com/nexusforge/agentloop/internal/usage"
)

// Store owns the three collections the Iteration Controller persists
// to across a cycle's lifetime.
type Store struct {
	client       *mongo.Client
	memory       *mongo.Collection
	usage        *mongo.Collection
	iterationLog *mongo.Collection
}

// Connect dials uri and returns a Store scoped to database dbName. The
// caller owns the returned Store's lifetime and must call Disconnect
// on every exit path — spec.md §6's CLI surface requires the store
// disconnected before a fatal-crash exit, not just on the happy path.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	db := client.Database(dbName)
	return &Store{
		client:       client,
		memory:       db.Collection("memory"),
		usage:        db.Collection("usage"),
		iterationLog: db.Collection("iterationLog"),
	}, nil
}

// Disconnect closes the underlying client.
func (s *Store) Disconnect(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("store: disconnect: %w", err)
	}
	return nil
}

// memoryDoc is the `memory` collection's document shape (spec.md §6).
type memoryDoc struct {
	ID        string    `bson:"_id"`
	Content   string    `bson:"content"`
	Summary   string    `bson:"summary"`
	Category  string    `bson:"category"`
	Active    bool      `bson:"active"`
	CreatedAt time.Time `bson:"createdAt"`
}

func toDoc(r memory.Record) memoryDoc {
	return memoryDoc{ID: r.ID, Content: r.Content, Summary: r.Summary, Category: string(r.Category), Active: r.Active, CreatedAt: r.CreatedAt}
}

func (d memoryDoc) toRecord() memory.Record {
	return memory.Record{ID: d.ID, Content: d.Content, Summary: d.Summary, Category: memory.Category(d.Category), Active: d.Active, CreatedAt: d.CreatedAt}
}

// Insert satisfies memory.Store.
func (s *Store) Insert(r memory.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := s.memory.InsertOne(ctx, toDoc(r)); err != nil {
		return fmt.Errorf("store: insert memory record %s: %w", r.ID, err)
	}
	return nil
}

// All satisfies memory.Store.
func (s *Store) All() ([]memory.Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cur, err := s.memory.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("store: load memory records: %w", err)
	}
	defer cur.Close(ctx)

	var out []memory.Record
	for cur.Next(ctx) {
		var doc memoryDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("store: decode memory record: %w", err)
		}
		out = append(out, doc.toRecord())
	}
	return out, cur.Err()
}

// Update satisfies memory.Store (used by DismissNote).
func (s *Store) Update(r memory.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := s.memory.ReplaceOne(ctx, bson.M{"_id": r.ID}, toDoc(r))
	if err != nil {
		return fmt.Errorf("store: update memory record %s: %w", r.ID, err)
	}
	return nil
}

// InsertUsageSummary persists one cycle's usage rollup.
func (s *Store) InsertUsageSummary(ctx context.Context, summary usage.Summary) error {
	if _, err := s.usage.InsertOne(ctx, summary); err != nil {
		return fmt.Errorf("store: insert usage summary: %w", err)
	}
	return nil
}

// iterationLogDoc is the `iterationLog` collection's document shape.
type iterationLogDoc struct {
	Entries   []iterlog.Entry `bson:"entries"`
	CreatedAt time.Time       `bson:"createdAt"`
}

// InsertIterationLog persists one cycle's log buffer, called once by the
// controller's cycle cleanup before iterlog.Reset clears the in-process
// buffer.
func (s *Store) InsertIterationLog(ctx context.Context, entries []iterlog.Entry) error {
	doc := iterationLogDoc{Entries: entries, CreatedAt: time.Now()}
	if _, err := s.iterationLog.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("store: insert iteration log: %w", err)
	}
	return nil
}
