package docstore

import (
	"context"
	"fmt"

	"github.com/juju/mgo/v3"
	"github.com/juju/mgo/v3/bson"
)

// MongoStore maps collections one-to-one onto MongoDB collections. Set updates
// use $addToSet and $pull, which are atomic per document.
type MongoStore struct {
	session  *mgo.Session
	database string
}

// NewMongoStore constructs the store. Each call copies the session so
// concurrent operations use separate sockets.
func NewMongoStore(session *mgo.Session, database string) *MongoStore {
	return &MongoStore{session: session, database: database}
}

func (s *MongoStore) collection(name string) (*mgo.Collection, func()) {
	session := s.session.Copy()
	return session.DB(s.database).C(name), session.Close
}

func bsonDecode(data []byte, dest interface{}) error {
	return bson.Unmarshal(data, dest)
}

type idOnly struct {
	ID string `bson:"_id"`
}

// Read returns the document or ErrNotFound.
func (s *MongoStore) Read(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	if err := validateName(collection); err != nil {
		return Document{}, err
	}
	c, closeFn := s.collection(collection)
	defer closeFn()

	var raw bson.Raw
	if err := c.FindId(id).One(&raw); err != nil {
		if err == mgo.ErrNotFound {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("read %s/%s: %w", collection, id, err)
	}
	return NewDocument(id, raw.Data, bsonDecode), nil
}

// Query returns documents matching every equality filter, ordered by _id.
func (s *MongoStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateFilters(collection, filters); err != nil {
		return nil, err
	}
	c, closeFn := s.collection(collection)
	defer closeFn()

	var raws []bson.Raw
	if err := c.Find(selector(filters)).Sort("_id").All(&raws); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	docs := make([]Document, 0, len(raws))
	for _, raw := range raws {
		var key idOnly
		if err := raw.Unmarshal(&key); err != nil {
			return nil, fmt.Errorf("query %s: decode _id: %w", collection, err)
		}
		docs = append(docs, NewDocument(key.ID, raw.Data, bsonDecode))
	}
	return docs, nil
}

// Write replaces the document with the given _id, inserting it when absent.
func (s *MongoStore) Write(ctx context.Context, collection, id string, doc interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateName(collection); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("docstore: empty document id")
	}
	c, closeFn := s.collection(collection)
	defer closeFn()

	if _, err := c.UpsertId(id, doc); err != nil {
		return fmt.Errorf("write %s/%s: %w", collection, id, err)
	}
	return nil
}

// UpdateField applies $addToSet or $pull to the field.
func (s *MongoStore) UpdateField(ctx context.Context, collection, id, field string, op SetOp, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateUpdate(collection, id, field, op); err != nil {
		return err
	}
	c, closeFn := s.collection(collection)
	defer closeFn()

	if err := c.UpdateId(id, setUpdate(op, field, value)); err != nil {
		if err == mgo.ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("%s %s/%s.%s: %w", op, collection, id, field, err)
	}
	return nil
}

func selector(filters []Filter) bson.D {
	sel := bson.D{}
	for _, f := range filters {
		sel = append(sel, bson.DocElem{Name: f.Field, Value: f.Value})
	}
	return sel
}

func setUpdate(op SetOp, field, value string) bson.D {
	operator := "$addToSet"
	if op == ArrayRemove {
		operator = "$pull"
	}
	return bson.D{{Name: operator, Value: bson.D{{Name: field, Value: value}}}}
}
