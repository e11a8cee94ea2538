package mongostate

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowkit/agentflow/orchestrator"
	"github.com/flowkit/agentflow/strategy"
)

// fakeCollection is an in-memory stand-in for *mongo.Collection, avoiding
// the need for a live Mongo server in tests.
type fakeCollection struct {
	docs map[string]stateDocument
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{docs: map[string]stateDocument{}}
}

func (c *fakeCollection) FindOne(_ context.Context, filter any, _ ...options.Lister[options.FindOneOptions]) singleResult {
	m := filter.(bson.M)
	id, _ := m["run_id"].(string)
	doc, ok := c.docs[id]
	return fakeSingleResult{doc: doc, found: ok}
}

func (c *fakeCollection) UpdateOne(_ context.Context, filter, update any, _ ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error) {
	fm := filter.(bson.M)
	id, _ := fm["run_id"].(string)
	um := update.(bson.M)
	set := um["$set"].(bson.M)
	c.docs[id] = stateDocument{RunID: id, State: set["state"].(string)}
	return &mongodriver.UpdateResult{}, nil
}

type fakeSingleResult struct {
	doc   stateDocument
	found bool
}

func (r fakeSingleResult) Decode(val any) error {
	if !r.found {
		return mongodriver.ErrNoDocuments
	}
	out := val.(*stateDocument)
	*out = r.doc
	return nil
}

func TestSaveAndLoadRoundTrips(t *testing.T) {
	fc := newFakeCollection()
	store := &Store{coll: fc}

	orig := &orchestrator.State{Strategy: strategy.New("demo"), CursorIndex: 1}
	require.NoError(t, store.Save(context.Background(), "run-1", orig))

	loaded, err := store.Load(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.CursorIndex)
	assert.Equal(t, "demo", loaded.Strategy.Goal)
}

func TestLoadMissingDocumentReturnsError(t *testing.T) {
	store := &Store{coll: newFakeCollection()}
	_, err := store.Load(context.Background(), "missing")
	assert.Error(t, err)
}
