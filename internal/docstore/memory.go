package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps JSON documents in process. It backs local development and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string][]byte)}
}

func jsonDecode(data []byte, dest interface{}) error {
	return json.Unmarshal(data, dest)
}

// Read returns the document or ErrNotFound.
func (m *MemoryStore) Read(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	if err := validateName(collection); err != nil {
		return Document{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.collections[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return NewDocument(id, clone(data), jsonDecode), nil
}

// Query returns documents whose string fields equal every filter, ordered by ID.
func (m *MemoryStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateFilters(collection, filters); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := m.collections[collection]
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := make([]Document, 0)
	for _, id := range ids {
		var fields map[string]interface{}
		if err := json.Unmarshal(docs[id], &fields); err != nil {
			return nil, fmt.Errorf("docstore: corrupt document %s/%s: %w", collection, id, err)
		}
		if matches(fields, filters) {
			result = append(result, NewDocument(id, clone(docs[id]), jsonDecode))
		}
	}
	return result, nil
}

// Write replaces the document, creating it when absent.
func (m *MemoryStore) Write(ctx context.Context, collection, id string, doc interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateName(collection); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("docstore: empty document id")
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore: encode %s/%s: %w", collection, id, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collections[collection] == nil {
		m.collections[collection] = make(map[string][]byte)
	}
	m.collections[collection][id] = payload
	return nil
}

// UpdateField applies a set union or removal to an array field.
func (m *MemoryStore) UpdateField(ctx context.Context, collection, id, field string, op SetOp, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateUpdate(collection, id, field, op); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("docstore: corrupt document %s/%s: %w", collection, id, err)
	}

	var members []interface{}
	switch current := fields[field].(type) {
	case nil:
	case []interface{}:
		members = current
	default:
		return fmt.Errorf("%w: %s.%s", ErrNotArray, collection, field)
	}

	fields[field] = applySetOp(members, op, value)
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("docstore: encode %s/%s: %w", collection, id, err)
	}
	m.collections[collection][id] = payload
	return nil
}

func applySetOp(members []interface{}, op SetOp, value string) []interface{} {
	out := make([]interface{}, 0, len(members)+1)
	present := false
	for _, member := range members {
		if s, ok := member.(string); ok && s == value {
			present = true
			if op == ArrayRemove {
				continue
			}
		}
		out = append(out, member)
	}
	if op == ArrayUnion && !present {
		out = append(out, value)
	}
	return out
}

func matches(fields map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		s, ok := fields[f.Field].(string)
		if !ok || s != f.Value {
			return false
		}
	}
	return true
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
