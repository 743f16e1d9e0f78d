package docstore

import (
	"context"
	"time"
)

// Observer receives one callback per store call.
type Observer interface {
	ObserveStoreOperation(op, collection string, duration time.Duration, err error)
}

type instrumented struct {
	next     Store
	observer Observer
}

// Instrument decorates a store so every call is reported to the observer.
func Instrument(next Store, observer Observer) Store {
	if observer == nil {
		return next
	}
	return &instrumented{next: next, observer: observer}
}

func (s *instrumented) Read(ctx context.Context, collection, id string) (Document, error) {
	start := time.Now()
	doc, err := s.next.Read(ctx, collection, id)
	s.observer.ObserveStoreOperation("read", collection, time.Since(start), err)
	return doc, err
}

func (s *instrumented) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	start := time.Now()
	docs, err := s.next.Query(ctx, collection, filters...)
	s.observer.ObserveStoreOperation("query", collection, time.Since(start), err)
	return docs, err
}

func (s *instrumented) Write(ctx context.Context, collection, id string, doc interface{}) error {
	start := time.Now()
	err := s.next.Write(ctx, collection, id, doc)
	s.observer.ObserveStoreOperation("write", collection, time.Since(start), err)
	return err
}

func (s *instrumented) UpdateField(ctx context.Context, collection, id, field string, op SetOp, value string) error {
	start := time.Now()
	err := s.next.UpdateField(ctx, collection, id, field, op, value)
	s.observer.ObserveStoreOperation(op.String(), collection, time.Since(start), err)
	return err
}
