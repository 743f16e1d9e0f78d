// Package docstore is the client boundary to the hosted document database. It
// exposes only per-collection reads, equality queries, full-overwrite writes and
// atomic set-add/set-remove field updates; there are no multi-document
// transactions.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("docstore: document not found")

// ErrInvalidName is returned for collection or field names outside [A-Za-z0-9_].
var ErrInvalidName = errors.New("docstore: invalid name")

// ErrNotArray is returned when a set update targets a field that holds a non-array value.
var ErrNotArray = errors.New("docstore: field is not an array")

// SetOp selects the set update applied by UpdateField.
type SetOp int

const (
	// ArrayUnion adds the value when it is not already a member.
	ArrayUnion SetOp = iota + 1
	// ArrayRemove removes every occurrence of the value.
	ArrayRemove
)

func (op SetOp) String() string {
	switch op {
	case ArrayUnion:
		return "array_union"
	case ArrayRemove:
		return "array_remove"
	default:
		return fmt.Sprintf("set_op(%d)", int(op))
	}
}

// Filter is a single equality predicate on a top-level string field.
type Filter struct {
	Field string
	Value string
}

// Eq builds an equality filter.
func Eq(field, value string) Filter {
	return Filter{Field: field, Value: value}
}

// DecodeFunc decodes a backend-specific payload into dest.
type DecodeFunc func(data []byte, dest interface{}) error

// Document is a fetched document that has not been decoded yet.
type Document struct {
	ID     string
	data   []byte
	decode DecodeFunc
}

// NewDocument wraps an encoded payload.
func NewDocument(id string, data []byte, decode DecodeFunc) Document {
	return Document{ID: id, data: data, decode: decode}
}

// Decode unmarshals the document into dest.
func (d Document) Decode(dest interface{}) error {
	if d.decode == nil {
		return fmt.Errorf("docstore: document %s has no decoder", d.ID)
	}
	if err := d.decode(d.data, dest); err != nil {
		return fmt.Errorf("docstore: decode %s: %w", d.ID, err)
	}
	return nil
}

// Store is the document database seen by the attendance core. Every call is a
// network round trip that may fail or be slow.
type Store interface {
	Read(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	Write(ctx context.Context, collection, id string, doc interface{}) error
	UpdateField(ctx context.Context, collection, id, field string, op SetOp, value string) error
}

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func validateFilters(collection string, filters []Filter) error {
	if err := validateName(collection); err != nil {
		return err
	}
	for _, f := range filters {
		if err := validateName(f.Field); err != nil {
			return err
		}
	}
	return nil
}

func validateUpdate(collection, id, field string, op SetOp) error {
	if err := validateName(collection); err != nil {
		return err
	}
	if err := validateName(field); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("docstore: empty document id")
	}
	if op != ArrayUnion && op != ArrayRemove {
		return fmt.Errorf("docstore: unsupported %s", op)
	}
	return nil
}
