/*
Package kv implements the key-value facade: get/set/delete with a read cache in front of
the backend, and a channel based publish/subscribe facility.

# Cache

Reads are served from a bounded in-process cache (default: 100 entries, 30 minutes
after the last write). A write caches the new value before it is written through to the
backend, a delete invalidates the cache before and after the backend call. Reads that
were in flight while a key was written or deleted never repopulate the cache with the
old value (see package cache).

# Encoding

Values are stored as text: scalars as their literal form, everything else as JSON
(see package codec). Set(ctx, "n", 42) stores "42", Get returns int64(42).

# Pub/Sub

Subscribe registers exactly one handler per channel. The subscription connection is
opened lazily and shared. A message on a channel without a handler is logged and the
channel is unsubscribed.

	store, err := redis.Open(ctx, registry, 0)
	if err != nil {
		return err
	}
	defer store.Close()

	_ = store.Subscribe(ctx, "events", func(channel, message string) {
		fmt.Println(channel, message)
	})
	_ = store.Publish(ctx, "events", map[string]any{"type": "created"})

Backends: package kv/redis (go-redis) and package kv/memory (in-process).
*/
package kv
