package database

import (
	"fmt"
	"time"

	"github.com/juju/mgo/v3"

	"github.com/noah-isme/campus-attendance-api/pkg/config"
)

// NewMongo dials MongoDB and returns a master session. Callers copy it per operation.
func NewMongo(cfg config.MongoConfig) (*mgo.Session, error) {
	info, err := mgo.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse mongo url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	info.Timeout = timeout
	if cfg.Database != "" {
		info.Database = cfg.Database
	}

	session, err := mgo.DialWithInfo(info)
	if err != nil {
		return nil, fmt.Errorf("dial mongo: %w", err)
	}
	session.SetMode(mgo.Monotonic, true)
	session.SetSocketTimeout(timeout)
	session.SetSyncTimeout(timeout)

	if err := session.Ping(); err != nil {
		session.Close()
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return session, nil
}
