package kv

import (
	"context"
	"github.com/ValentinKolb/dFacade/lib/database"
	"time"
)

// Backend is the contract between the key-value facade and a driver.
// Values are plain text, the facade takes care of encoding.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Type returns the backend family
	Type() database.BackendType

	// Get returns the value of key. A missing key is not an error, found is false instead.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key without expiry
	Set(ctx context.Context, key, value string) error

	// SetNX stores value under key only if the key does not exist.
	// A ttl > 0 deletes the key after ttl. ok reports whether the value was stored.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (ok bool, err error)

	// Delete removes all given keys in one call and returns how many existed
	Delete(ctx context.Context, keys ...string) (deleted int64, err error)

	// DeleteIfEquals removes key only if it currently holds value, as one atomic step.
	// deleted is false if the key is missing or holds another value.
	DeleteIfEquals(ctx context.Context, key, value string) (deleted bool, err error)

	// Publish sends message on channel, regardless of whether anybody listens
	Publish(ctx context.Context, channel, message string) error

	// OpenPubSub opens a new subscription connection without any channels
	OpenPubSub(ctx context.Context) (PubSub, error)

	// Ping issues a round-trip to the server
	Ping(ctx context.Context) error

	// Close releases the client. Using the backend afterwards returns an error.
	Close() error
}

// Message is a message received on a channel
type Message struct {
	Channel string
	Payload string
}

// PubSub is a subscription connection
type PubSub interface {
	// Subscribe adds channels to the subscription
	Subscribe(ctx context.Context, channels ...string) error

	// Unsubscribe removes channels from the subscription
	Unsubscribe(ctx context.Context, channels ...string) error

	// Messages returns the channel on which messages are delivered.
	// It is closed when the subscription is closed.
	Messages() <-chan Message

	// Close ends the subscription
	Close() error
}
