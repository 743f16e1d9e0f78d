package service

import (
	"context"
	"sync"

	"github.com/noah-isme/campus-attendance-api/internal/docstore"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
)

// faultyStore wraps a store and fails selected calls, counting writes.
type faultyStore struct {
	docstore.Store

	mu          sync.Mutex
	readErr     error
	queryErr    error
	writeErr    error
	updateErrs  map[string]error
	writes      int
	fieldWrites int
}

func newFaultyStore() *faultyStore {
	return &faultyStore{Store: docstore.NewMemoryStore(), updateErrs: map[string]error{}}
}

func (f *faultyStore) failUpdates(collection string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.updateErrs, collection)
		return
	}
	f.updateErrs[collection] = err
}

func (f *faultyStore) Read(ctx context.Context, collection, id string) (docstore.Document, error) {
	if f.readErr != nil {
		return docstore.Document{}, f.readErr
	}
	return f.Store.Read(ctx, collection, id)
}

func (f *faultyStore) Query(ctx context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.Store.Query(ctx, collection, filters...)
}

func (f *faultyStore) Write(ctx context.Context, collection, id string, doc interface{}) error {
	f.mu.Lock()
	f.writes++
	f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.Store.Write(ctx, collection, id, doc)
}

func (f *faultyStore) UpdateField(ctx context.Context, collection, id, field string, op docstore.SetOp, value string) error {
	f.mu.Lock()
	f.fieldWrites++
	err := f.updateErrs[collection]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.UpdateField(ctx, collection, id, field, op, value)
}

type stubIdentity struct {
	id string
}

func (s stubIdentity) Require(ctx context.Context) (string, error) {
	if s.id == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthenticated, "")
	}
	return s.id, nil
}
