// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

package datastore

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ergochat/rearguard/irc/flock"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	store, err := Open(MemoryPath, 0)
	if err != nil {
		t.Fatalf("couldn't open in-memory store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSessionLifecycle(t *testing.T) {
	store := openMemory(t)
	start := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"b", "a", "c"} {
		err := store.Begin(Session{ID: id, Peer: "127.0.0.1:5000", Started: start.Add(time.Duration(i) * time.Second)})
		if err != nil {
			t.Fatalf("Begin(%s): %v", id, err)
		}
	}
	if err := store.End("a", "alice", "quit", 3, start.Add(time.Minute)); err != nil {
		t.Fatalf("End: %v", err)
	}

	sessions, err := store.Sessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	// oldest first, regardless of key order
	for i, id := range []string{"b", "a", "c"} {
		if sessions[i].ID != id {
			t.Errorf("session %d: expected %s, got %s", i, id, sessions[i].ID)
		}
	}

	alice := sessions[1]
	if alice.Nick != "alice" || alice.Reason != "quit" || alice.Relayed != 3 {
		t.Errorf("unexpected ended session: %+v", alice)
	}
	if alice.Open() {
		t.Errorf("ended session still reports open")
	}
	if !alice.Ended.Equal(start.Add(time.Minute)) {
		t.Errorf("unexpected end time %v", alice.Ended)
	}
	if !sessions[0].Open() {
		t.Errorf("unended session reports closed")
	}
}

func TestEndUnknown(t *testing.T) {
	store := openMemory(t)
	if err := store.End("nope", "", "", 0, time.Now()); err != ErrUnknownSession {
		t.Errorf("expected ErrUnknownSession, got %v", err)
	}
}

func TestRetention(t *testing.T) {
	store, err := Open(MemoryPath, 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.Begin(Session{ID: "x", Started: time.Now()}); err != nil {
		t.Fatal(err)
	}
	// expired items are swept once a second
	time.Sleep(1500 * time.Millisecond)

	sessions, err := store.Sessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 0 {
		t.Errorf("expected expired sessions to be gone, got %+v", sessions)
	}
}

func TestOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rearguard.db")

	if _, err := Open(path, 0); err != ErrNotInitialized {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := InitDB(path); err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	if err := InitDB(path); err != ErrAlreadyExists {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	store, err := Open(path, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Begin(Session{ID: "persisted", Started: time.Now()}); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(path, 0); !errors.Is(err, flock.ErrLocked) {
		t.Errorf("expected second open to fail on the lock, got %v", err)
	}
	store.Close()

	store, err = Open(path, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	sessions, err := store.Sessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].ID != "persisted" {
		t.Errorf("unexpected sessions after reopen: %+v", sessions)
	}
}
