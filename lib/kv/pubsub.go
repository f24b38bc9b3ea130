package kv

import (
	"context"
	"github.com/ValentinKolb/dFacade/lib/codec"
	"github.com/ValentinKolb/dFacade/lib/database"
	"time"
)

// --------------------------------------------------------------------------
// Pub/Sub Operations
// --------------------------------------------------------------------------

// Subscribe registers handler for channel and subscribes to it.
// A handler registered earlier for the same channel is replaced.
// The subscription connection is opened on first use and shared by all channels.
func (s *Store) Subscribe(ctx context.Context, channel string, handler Handler) (err error) {
	defer s.metrics.Observe("subscribe", time.Now(), &err)

	if handler == nil {
		return database.NewError(database.CodeConfiguration, "handler must not be nil")
	}

	ps, err := s.pubSub(ctx)
	if err != nil {
		return err
	}

	// register first, a message may arrive before Subscribe returns
	previous, replaced := s.handlers.LoadAndStore(channel, handler)
	if err := ps.Subscribe(ctx, channel); err != nil {
		if replaced {
			s.handlers.Store(channel, previous)
		} else {
			s.handlers.Delete(channel)
		}
		return database.WrapBackend("subscribe "+channel, err)
	}
	return nil
}

// Unsubscribe removes the handlers of the given channels and unsubscribes from them
func (s *Store) Unsubscribe(ctx context.Context, channels ...string) (err error) {
	defer s.metrics.Observe("unsubscribe", time.Now(), &err)

	if len(channels) == 0 {
		return nil
	}
	for _, channel := range channels {
		s.handlers.Delete(channel)
	}

	s.psMu.Lock()
	ps := s.ps
	s.psMu.Unlock()
	if ps == nil {
		return nil
	}
	return database.WrapBackend("unsubscribe", ps.Unsubscribe(ctx, channels...))
}

// Publish encodes message like Set does and sends it on channel.
// It does not matter whether a local handler exists for channel.
func (s *Store) Publish(ctx context.Context, channel string, message any) (err error) {
	defer s.metrics.Observe("publish", time.Now(), &err)

	raw, err := codec.Encode(message)
	if err != nil {
		return database.WrapEncoding(err)
	}
	return database.WrapBackend("publish "+channel, s.backend.Publish(ctx, channel, raw))
}

// Channels returns the channels that currently have a handler
func (s *Store) Channels() []string {
	channels := make([]string, 0, s.handlers.Size())
	s.handlers.Range(func(channel string, _ Handler) bool {
		channels = append(channels, channel)
		return true
	})
	return channels
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// pubSub returns the shared subscription connection, opening it if needed
func (s *Store) pubSub(ctx context.Context) (PubSub, error) {
	s.psMu.Lock()
	defer s.psMu.Unlock()

	if s.ps != nil {
		return s.ps, nil
	}
	if s.closed.Load() {
		return nil, database.NewError(database.CodeBackend, "store is closed")
	}

	ps, err := s.backend.OpenPubSub(ctx)
	if err != nil {
		return nil, database.WrapBackend("open pubsub", err)
	}
	s.ps = ps
	s.psDone = make(chan struct{})
	go s.dispatch(ps, s.psDone)
	return ps, nil
}

// dispatch delivers inbound messages to their handlers until the subscription is closed.
// Messages on channels without a handler are dropped and the channel is unsubscribed.
func (s *Store) dispatch(ps PubSub, done chan struct{}) {
	defer close(done)

	for msg := range ps.Messages() {
		handler, ok := s.handlers.Load(msg.Channel)
		if !ok {
			Logger.Warningf("received message on channel %q without handler, unsubscribing", msg.Channel)
			if err := ps.Unsubscribe(context.Background(), msg.Channel); err != nil {
				Logger.Errorf("could not unsubscribe from channel %q: %v", msg.Channel, err)
			}
			continue
		}
		s.invoke(handler, msg)
	}
}

// invoke calls handler and recovers from a panic, so one faulty handler cannot stop the dispatch loop
func (s *Store) invoke(handler Handler, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("handler for channel %q panicked: %v", msg.Channel, r)
		}
	}()
	handler(msg.Channel, msg.Payload)
}
