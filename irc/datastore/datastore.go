// Copyright (c) 2022 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

// Package datastore keeps a history of connection sessions in buntdb.
// It records who connected and how they left; it is not a nick registry.
package datastore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/buntdb"

	"github.com/ergochat/rearguard/irc/flock"
)

const (
	// MemoryPath opens a throwaway in-memory store.
	MemoryPath = ":memory:"

	keySchemaVersion = "db.version"
	// XXX this is persisted and must be bumped on any change to Session
	latestDbSchema = "1"

	sessionPrefix = "session "
	sessionIndex  = "sessions_by_start"
)

var (
	ErrNotInitialized = errors.New("Datastore is not initialized; run `rearguard initdb`")
	ErrAlreadyExists  = errors.New("Datastore already exists; refusing to overwrite it")
	ErrUnknownSession = errors.New("No such session")
)

// IncompatibleSchemaError means the database was written by another
// version of rearguard.
type IncompatibleSchemaError struct {
	CurrentVersion  string
	RequiredVersion string
}

func (err *IncompatibleSchemaError) Error() string {
	return fmt.Sprintf("Database requires update. Expected schema v%s, got v%s", err.RequiredVersion, err.CurrentVersion)
}

// Session is the stored record of one connection.
type Session struct {
	ID      string    `json:"id"`
	Peer    string    `json:"peer"`
	Nick    string    `json:"nick,omitempty"`
	Started time.Time `json:"started"`
	Ended   time.Time `json:"ended"`
	Reason  string    `json:"reason,omitempty"`
	// number of PRIVMSG/NOTICE submitted to the relay
	Relayed int `json:"relayed"`

	// sort key for the session index; set on write
	StartedNanos int64 `json:"started_ns"`
}

// Open reports whether the session is still in progress.
func (session *Session) Open() bool {
	return session.Ended.IsZero()
}

// Store is a buntdb-backed session history. It is safe for concurrent use.
type Store struct {
	db        *buntdb.DB
	lock      flock.Locker
	retention time.Duration
}

// InitDB creates a fresh database at path.
func InitDB(path string) (err error) {
	if path != MemoryPath {
		if _, err := os.Stat(path); err == nil {
			return ErrAlreadyExists
		}
	}

	db, err := buntdb.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	return initialize(db)
}

func initialize(db *buntdb.DB) error {
	return db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(keySchemaVersion, latestDbSchema, nil)
		return err
	})
}

// Open opens an initialized database, checking its schema version.
// Records written through the store expire after retention; zero keeps
// them forever. An on-disk database is flocked for as long as it is open.
func Open(path string, retention time.Duration) (store *Store, err error) {
	store = &Store{retention: retention}

	if path != MemoryPath {
		// buntdb would create a missing file
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotInitialized
		}
		store.lock, err = flock.TryAcquire(path + ".lock")
		if err != nil {
			return nil, err
		}
	}
	defer func() {
		if err != nil {
			store.Close()
			store = nil
		}
	}()

	store.db, err = buntdb.Open(path)
	if err != nil {
		return
	}
	if path == MemoryPath {
		if err = initialize(store.db); err != nil {
			return
		}
	}

	var version string
	err = store.db.View(func(tx *buntdb.Tx) (err error) {
		version, err = tx.Get(keySchemaVersion)
		return
	})
	if err == buntdb.ErrNotFound {
		return store, ErrNotInitialized
	} else if err != nil {
		return
	}
	if version != latestDbSchema {
		err = &IncompatibleSchemaError{CurrentVersion: version, RequiredVersion: latestDbSchema}
		return
	}

	err = store.db.CreateIndex(sessionIndex, sessionPrefix+"*", buntdb.IndexJSON("started_ns"))
	return
}

// Close closes the database and releases the lock.
func (store *Store) Close() (err error) {
	if store.db != nil {
		err = store.db.Close()
		store.db = nil
	}
	if store.lock != nil {
		store.lock.Unlock()
		store.lock = nil
	}
	return
}

func sessionKey(id string) string {
	return sessionPrefix + id
}

func (store *Store) put(tx *buntdb.Tx, session Session) error {
	session.StartedNanos = session.Started.UnixNano()
	value, err := json.Marshal(session)
	if err != nil {
		return err
	}
	var setOptions *buntdb.SetOptions
	if store.retention > 0 {
		setOptions = &buntdb.SetOptions{Expires: true, TTL: store.retention}
	}
	_, _, err = tx.Set(sessionKey(session.ID), string(value), setOptions)
	return err
}

// Begin records the start of a session.
func (store *Store) Begin(session Session) error {
	return store.db.Update(func(tx *buntdb.Tx) error {
		return store.put(tx, session)
	})
}

// End completes a session begun with Begin.
func (store *Store) End(id, nick, reason string, relayed int, at time.Time) error {
	return store.db.Update(func(tx *buntdb.Tx) error {
		value, err := tx.Get(sessionKey(id))
		if err == buntdb.ErrNotFound {
			return ErrUnknownSession
		} else if err != nil {
			return err
		}
		var session Session
		if err := json.Unmarshal([]byte(value), &session); err != nil {
			return err
		}
		session.Nick = nick
		session.Reason = reason
		session.Relayed = relayed
		session.Ended = at
		return store.put(tx, session)
	})
}

// Sessions returns every unexpired session, oldest first.
func (store *Store) Sessions() (result []Session, err error) {
	err = store.db.View(func(tx *buntdb.Tx) error {
		var decodeErr error
		err := tx.Ascend(sessionIndex, func(key, value string) bool {
			var session Session
			if decodeErr = json.Unmarshal([]byte(value), &session); decodeErr != nil {
				return false
			}
			result = append(result, session)
			return true
		})
		if err != nil {
			return err
		}
		return decodeErr
	})
	return
}
