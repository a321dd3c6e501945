package temporal

import (
	"context"

	"github.com/evalgo/memento/graphstore"
)

// storeResponse is one queued (records, err) pair a fakeStore hands back.
type storeResponse struct {
	records []graphstore.Record
	err error
}

// call records one ExecuteWrite/ExecuteRead invocation for assertions.
type call struct {
	query string
	params map[string]interface{}
}

// fakeStore is a hand-rolled graphstore.Store: tests queue scripted
// responses and assert on the recorded calls rather than interpreting
// Cypher.
type fakeStore struct {
	writes []call
	reads []call

	writeResponses []storeResponse
	readResponses []storeResponse
}

func newFakeStore() *fakeStore {
	return &fakeStore{}
}

func (f *fakeStore) pushWrite(records []graphstore.Record, err error) {
	f.writeResponses = append(f.writeResponses, storeResponse{records, err})
}

func (f *fakeStore) pushRead(records []graphstore.Record, err error) {
	f.readResponses = append(f.readResponses, storeResponse{records, err})
}

func (f *fakeStore) ExecuteWrite(ctx context.Context, query string, params map[string]interface{}) ([]graphstore.Record, error) {
	f.writes = append(f.writes, call{query, params})
	if len(f.writeResponses) == 0 {
		return nil, nil
	}
	r := f.writeResponses[0]
	f.writeResponses = f.writeResponses[1:]
	return r.records, r.err
}

func (f *fakeStore) ExecuteRead(ctx context.Context, query string, params map[string]interface{}) ([]graphstore.Record, error) {
	f.reads = append(f.reads, call{query, params})
	if len(f.readResponses) == 0 {
		return nil, nil
	}
	r := f.readResponses[0]
	f.readResponses = f.readResponses[1:]
	return r.records, r.err
}

func (f *fakeStore) EnsureIndexes(ctx context.Context) error { return nil }

func (f *fakeStore) IndexHealth(ctx context.Context) (graphstore.IndexHealth, error) {
	return graphstore.IndexHealth{}, nil
}

func (f *fakeStore) Close(ctx context.Context) error { return nil }

// fakeEmbedder is a hand-rolled VersionEmbedder recording calls.
type fakeEmbedder struct {
	calls []call
	err error
}

func (e *fakeEmbedder) DispatchCheckpointMember(ctx context.Context, entityID, checkpointID string) error {
	e.calls = append(e.calls, call{query: entityID, params: map[string]interface{}{"checkpointId": checkpointID}})
	return e.err
}
