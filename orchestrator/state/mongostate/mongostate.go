// Package mongostate implements state.Store as one document per run id
// in a MongoDB collection, grounded on the teacher's backend-swap pattern
// for Mongo-backed stores (features/memory/mongo/clients/mongo): a narrow
// collection interface wraps the driver so tests can substitute a fake
// without a live server.
package mongostate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/flowkit/agentflow/orchestrator"
)

const (
	defaultCollection = "agentflow_state"
	defaultTimeout    = 5 * time.Second
)

// Options configures the Mongo client implementation.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store persists checkpoints as documents keyed by run_id.
type Store struct {
	coll    collection
	timeout time.Duration
}

// New returns a Store backed by the provided MongoDB client.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongostate: mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("mongostate: database name is required")
	}
	coll := opts.Collection
	if coll == "" {
		coll = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Store{
		coll:    mongoCollection{coll: opts.Client.Database(opts.Database).Collection(coll)},
		timeout: timeout,
	}, nil
}

type stateDocument struct {
	RunID     string    `bson:"run_id"`
	State     string    `bson:"state"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Save implements state.Store.
func (s *Store) Save(ctx context.Context, id string, st *orchestrator.State) error {
	if id == "" {
		return errors.New("mongostate: run id is required")
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("mongostate: encoding state: %w", err)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"run_id": id}
	update := bson.M{"$set": bson.M{
		"run_id":     id,
		"state":      string(raw),
		"updated_at": time.Now().UTC(),
	}}
	_, err = s.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongostate: writing %s: %w", id, err)
	}
	return nil
}

// Load implements state.Store.
func (s *Store) Load(ctx context.Context, id string) (*orchestrator.State, error) {
	if id == "" {
		return nil, errors.New("mongostate: run id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc stateDocument
	if err := s.coll.FindOne(ctx, bson.M{"run_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("mongostate: no checkpoint for run %q", id)
		}
		return nil, fmt.Errorf("mongostate: reading %s: %w", id, err)
	}
	var st orchestrator.State
	if err := json.Unmarshal([]byte(doc.State), &st); err != nil {
		return nil, fmt.Errorf("mongostate: decoding state: %w", err)
	}
	return &st, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

type collection interface {
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult
	UpdateOne(ctx context.Context, filter, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error)
}

type singleResult interface {
	Decode(val any) error
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult {
	return c.coll.FindOne(ctx, filter, opts...)
}

func (c mongoCollection) UpdateOne(ctx context.Context, filter, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error) {
	return c.coll.UpdateOne(ctx, filter, update, opts...)
}
