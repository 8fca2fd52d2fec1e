// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

package irc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ergochat/rearguard/irc/message"
)

const relayTestTimeout = 2 * time.Second

// eventRecorder is an EventHook that remembers what it saw.
type eventRecorder struct {
	sync.Mutex
	events []Event
}

func (r *eventRecorder) hook(event Event) {
	r.Lock()
	defer r.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) ofKind(kind EventKind) (result []Event) {
	r.Lock()
	defer r.Unlock()
	for _, event := range r.events {
		if event.Kind == kind {
			result = append(result, event)
		}
	}
	return
}

func startRelay(t *testing.T, sendQ int, hook EventHook) *Relay {
	t.Helper()
	relay := NewRelay(sendQ, hook)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return relay
}

func receive(t *testing.T, ch <-chan message.Message) message.Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed unexpectedly")
		}
		return msg
	case <-time.After(relayTestTimeout):
		t.Fatalf("timed out waiting for a broadcast")
	}
	return message.Message{}
}

func assertEmpty(t *testing.T, ch <-chan message.Message) {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if ok {
			t.Errorf("unexpected broadcast %s", msg.String())
		}
	default:
	}
}

func assertClosed(t *testing.T, ch <-chan message.Message) {
	t.Helper()
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-time.After(relayTestTimeout):
			t.Fatalf("timed out waiting for channel to close")
		}
	}
}

func TestRelayFanOut(t *testing.T) {
	relay := startRelay(t, 8, nil)
	never := make(chan struct{})

	a, _ := relay.Register("a", "peer-a", never, nil)
	b, _ := relay.Register("b", "peer-b", never, nil)
	c, _ := relay.Register("c", "peer-c", never, nil)

	msg := message.Make("PRIVMSG", "#all").WithPrefix("alice").WithTrail("hi there")
	if err := relay.Submit(msg); err != nil {
		t.Fatal(err)
	}

	// the submitter receives its own message too
	for _, ch := range []<-chan message.Message{a, b, c} {
		if diff := cmp.Diff(msg, receive(t, ch)); diff != "" {
			t.Errorf("broadcast mismatch (-want +got):\n%s", diff)
		}
	}

	// a late joiner never sees earlier traffic
	d, _ := relay.Register("d", "peer-d", never, nil)
	if relay.Count() != 4 {
		t.Errorf("expected 4 recipients, got %d", relay.Count())
	}
	assertEmpty(t, d)
}

func TestRelayOrdering(t *testing.T) {
	relay := startRelay(t, 64, nil)
	never := make(chan struct{})
	a, _ := relay.Register("a", "", never, nil)
	b, _ := relay.Register("b", "", never, nil)

	for _, text := range []string{"one", "two", "three"} {
		relay.Submit(message.Make("NOTICE", "*").WithTrail(text))
	}
	for _, ch := range []<-chan message.Message{a, b} {
		for _, text := range []string{"one", "two", "three"} {
			if got := receive(t, ch).Trail; got != text {
				t.Errorf("expected %s, got %s", text, got)
			}
		}
	}
}

func TestRelayUnregister(t *testing.T) {
	relay := startRelay(t, 8, nil)
	never := make(chan struct{})
	a, _ := relay.Register("a", "", never, nil)
	b, _ := relay.Register("b", "", never, nil)

	relay.Unregister("a")
	relay.Unregister("nonexistent")
	assertClosed(t, a)

	relay.Submit(message.Make("PING", "x"))
	receive(t, b)
	if relay.Count() != 1 {
		t.Errorf("expected 1 recipient, got %d", relay.Count())
	}
}

func TestRelayDropsStaleRecipient(t *testing.T) {
	var recorder eventRecorder
	relay := startRelay(t, 8, recorder.hook)

	gone := make(chan struct{})
	stale, _ := relay.Register("stale", "peer-stale", gone, nil)
	live, _ := relay.Register("live", "peer-live", make(chan struct{}), nil)
	close(gone)

	relay.Submit(message.Make("NOTICE", "*").WithTrail("anyone there"))
	receive(t, live)
	assertClosed(t, stale)

	if relay.Count() != 1 {
		t.Errorf("expected the stale entry to be pruned, %d remain", relay.Count())
	}
	drops := recorder.ofKind(EventRelayDrop)
	if len(drops) != 1 || drops[0].ClientID != "stale" || drops[0].Err != errStaleRecipient {
		t.Errorf("unexpected drop events: %+v", drops)
	}
}

func TestRelaySendQExceeded(t *testing.T) {
	var recorder eventRecorder
	relay := startRelay(t, 2, recorder.hook)
	never := make(chan struct{})

	evicted := make(chan struct{})
	slow, _ := relay.Register("slow", "", never, func() { close(evicted) })
	fast, _ := relay.Register("fast", "", never, func() { t.Errorf("fast recipient evicted") })

	for i := 0; i < 3; i++ {
		relay.Submit(message.Make("NOTICE", "*").WithTrail("flood"))
		receive(t, fast)
	}

	// the two buffered messages are still delivered before the close
	receive(t, slow)
	receive(t, slow)
	assertClosed(t, slow)
	select {
	case <-evicted:
	default:
		t.Errorf("slow recipient was not evicted")
	}

	drops := recorder.ofKind(EventRelayDrop)
	if len(drops) != 1 || drops[0].ClientID != "slow" || drops[0].Err != errSendQExceeded {
		t.Errorf("unexpected drop events: %+v", drops)
	}
}

func TestRelayStop(t *testing.T) {
	relay := NewRelay(4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()

	a, err := relay.Register("a", "", make(chan struct{}), nil)
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	<-done

	assertClosed(t, a)
	if err := relay.Submit(message.Make("PING", "x")); err != errRelayStopped {
		t.Errorf("expected errRelayStopped, got %v", err)
	}
	if _, err := relay.Register("b", "", nil, nil); err != errRelayStopped {
		t.Errorf("expected errRelayStopped, got %v", err)
	}
	if relay.Count() != 0 {
		t.Errorf("stopped relay should report no recipients")
	}
}

func TestRelayClonesParams(t *testing.T) {
	relay := startRelay(t, 4, nil)
	never := make(chan struct{})
	a, _ := relay.Register("a", "", never, nil)
	b, _ := relay.Register("b", "", never, nil)

	relay.Submit(message.Make("PRIVMSG", "#x", "y"))
	msgA, msgB := receive(t, a), receive(t, b)
	msgA.Params[0] = "mutated"
	if msgB.Params[0] != "#x" {
		t.Errorf("recipients share a params slice")
	}
}
