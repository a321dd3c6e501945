package kgs

import (
	"context"
	"time"

	"github.com/evalgo/memento/graphstore"
	"github.com/evalgo/memento/model"
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
// responses with pushWrite/pushRead and assert on the recorded calls
// afterward, rather than interpreting Cypher.
type fakeStore struct {
	writes []call
	reads []call

	writeResponses []storeResponse
	readResponses []storeResponse

	indexHealth graphstore.IndexHealth
	indexErr error
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

func (f *fakeStore) EnsureIndexes(ctx context.Context) error { return f.indexErr }

func (f *fakeStore) IndexHealth(ctx context.Context) (graphstore.IndexHealth, error) {
	return f.indexHealth, nil
}

func (f *fakeStore) Close(ctx context.Context) error { return nil }

// fakeHistory is a hand-rolled kgs.History recording every hook call.
type fakeHistory struct {
	appended []model.Entity
	opened []call
	closed []call

	appendErr error
	openErr error
	closeErr error
}

func (h *fakeHistory) AppendVersion(ctx context.Context, e model.Entity, changeSetID string) (string, error) {
	h.appended = append(h.appended, e)
	if h.appendErr != nil {
		return "", h.appendErr
	}
	return "ver_" + e.ID + "_1", nil
}

func (h *fakeHistory) OpenEdge(ctx context.Context, from, to string, relType model.RelationshipType, ts time.Time, changeSetID string) error {
	h.opened = append(h.opened, call{query: from + "->" + to, params: map[string]interface{}{
		"type": string(relType), "changeSetId": changeSetID, "ts": ts,
	}})
	return h.openErr
}

func (h *fakeHistory) CloseEdge(ctx context.Context, from, to string, relType model.RelationshipType, ts time.Time) error {
	h.closed = append(h.closed, call{query: from + "->" + to, params: map[string]interface{}{
		"type": string(relType), "ts": ts,
	}})
	return h.closeErr
}
