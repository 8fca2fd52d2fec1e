// Copyright (c) 2026 Rearguard contributors
// released under the MIT license

package irc

import (
	"context"

	"github.com/ergochat/rearguard/irc/message"
)

// subscription is a registered recipient of broadcasts.
type subscription struct {
	id   string
	peer string
	out  chan message.Message
	// closed when the owning handler has terminated
	done <-chan struct{}
	// tells the handler it was dropped for falling behind; may be nil
	evict func()
}

// Relay republishes every submitted message to every registered client.
// The registry is owned by the goroutine executing Run; other goroutines
// only talk to it over channels.
type Relay struct {
	register   chan subscription
	unregister chan string
	broadcast  chan message.Message
	count      chan chan int
	// closed when Run returns
	stopped chan struct{}

	sendQ int
	emit  EventHook
}

// NewRelay returns a relay whose recipients buffer up to sendQ messages.
// emit may be nil.
func NewRelay(sendQ int, emit EventHook) *Relay {
	if sendQ <= 0 {
		sendQ = defaultSendQ
	}
	if emit == nil {
		emit = func(Event) {}
	}
	return &Relay{
		register:   make(chan subscription),
		unregister: make(chan string),
		broadcast:  make(chan message.Message),
		count:      make(chan chan int),
		stopped:    make(chan struct{}),
		sendQ:      sendQ,
		emit:       emit,
	}
}

// Register adds a recipient and returns the channel its broadcasts arrive
// on. done must be closed once the recipient stops reading. The returned
// channel is closed when the recipient is dropped or the relay stops.
// evict, if non-nil, is called from the relay goroutine when the recipient
// is dropped for a full buffer, before its channel is closed; it must not
// block.
func (relay *Relay) Register(id, peer string, done <-chan struct{}, evict func()) (<-chan message.Message, error) {
	sub := subscription{
		id:    id,
		peer:  peer,
		out:   make(chan message.Message, relay.sendQ),
		done:  done,
		evict: evict,
	}
	select {
	case relay.register <- sub:
		return sub.out, nil
	case <-relay.stopped:
		return nil, errRelayStopped
	}
}

// Unregister removes a recipient. Unknown ids are ignored.
func (relay *Relay) Unregister(id string) {
	select {
	case relay.unregister <- id:
	case <-relay.stopped:
	}
}

// Submit hands msg to the relay. It returns once the relay has taken the
// message; every recipient registered at that point receives it.
func (relay *Relay) Submit(msg message.Message) error {
	select {
	case relay.broadcast <- msg:
		return nil
	case <-relay.stopped:
		return errRelayStopped
	}
}

// Count returns the number of registered recipients.
func (relay *Relay) Count() int {
	reply := make(chan int, 1)
	select {
	case relay.count <- reply:
		return <-reply
	case <-relay.stopped:
		return 0
	}
}

// Run services the relay until ctx is done, then closes every recipient's
// channel.
func (relay *Relay) Run(ctx context.Context) {
	subs := make(map[string]subscription)

	defer func() {
		close(relay.stopped)
		for _, sub := range subs {
			close(sub.out)
		}
	}()

	for {
		select {
		case sub := <-relay.register:
			if old, ok := subs[sub.id]; ok {
				close(old.out)
			}
			subs[sub.id] = sub
		case id := <-relay.unregister:
			if sub, ok := subs[id]; ok {
				delete(subs, id)
				close(sub.out)
			}
		case msg := <-relay.broadcast:
			relay.fanOut(subs, msg)
		case reply := <-relay.count:
			reply <- len(subs)
		case <-ctx.Done():
			return
		}
	}
}

// fanOut never blocks: a recipient that has gone away or whose buffer is
// full is dropped, and its channel closed so its handler disconnects. A
// handler stuck writing to its peer never looks at the channel, so a full
// recipient is also evicted.
func (relay *Relay) fanOut(subs map[string]subscription, msg message.Message) {
	for id, sub := range subs {
		var err error
		select {
		case <-sub.done:
			err = errStaleRecipient
		default:
			select {
			case sub.out <- cloneMessage(msg):
				continue
			default:
				err = errSendQExceeded
				if sub.evict != nil {
					sub.evict()
				}
			}
		}
		delete(subs, id)
		close(sub.out)
		relay.emit(Event{
			Kind:     EventRelayDrop,
			ClientID: id,
			Peer:     sub.peer,
			Line:     msg.String(),
			Err:      err,
		})
	}
}

// cloneMessage gives each recipient its own params slice.
func cloneMessage(msg message.Message) message.Message {
	if msg.Params != nil {
		msg.Params = append([]string(nil), msg.Params...)
	}
	return msg
}
