/*
Package cache implements the bounded in-process TTL cache placed in front of the
key-value and document facades.

Entries expire a fixed TTL after their last write and the number of entries is bounded;
when the bound is exceeded the least recently used entry of a shard is evicted.
Writes go through Set, reads that missed populate the cache through Ticket/Fill:

	ticket := c.Ticket(key)
	value, err := backend.Get(ctx, key)
	if err == nil {
		c.Fill(key, value, ticket) // no-op if key was written or invalidated meanwhile
	}
*/
package cache
