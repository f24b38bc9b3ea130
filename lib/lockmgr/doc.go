// Package lockmgr implements owner-checked locks on top of any kv.Backend
// (redis in production, the memory backend in tests and offline use).
//
// The lock manager keeps no state of its own, everything lives in the backend.
// It is therefore safe to create it multiple times on the same backend, even once
// per acquire or release.
//
// Implementation Approach:
//
//   - Lock Acquisition: SetNX on "lock:<key>" with a random owner ID (UUID) as value.
//     Only one caller can create the key, SetNX reports whether it was us.
//
//   - Timeouts: a timeout > 0 is passed to the backend as key expiry, so a lock held by a
//     crashed client is released automatically.
//
//   - Safe Release: ReleaseLock deletes the key with DeleteIfEquals, the owner ID is
//     compared and the key deleted in one atomic step (a Lua script on redis). A lock
//     that expired and was taken over by another client is left alone.
//     Releasing a lock that does not exist (anymore) reports success.
//
// Locks bypass the read cache of kv.Store, a cached owner ID
// could outlive the lock's expiry. Build the manager from Store.Backend() to share the
// connection.
//
// Usage Example:
//
//	locks := lockmgr.NewLockManager(store.Backend())
//
//	acquired, ownerID, err := locks.AcquireLock(ctx, "resource:123", 30*time.Second)
//	if err != nil {
//	    return err
//	}
//	if acquired {
//	    defer locks.ReleaseLock(ctx, "resource:123", ownerID)
//	    // use the resource
//	}
package lockmgr
