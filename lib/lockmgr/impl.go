package lockmgr

import (
	"context"
	"github.com/ValentinKolb/dFacade/lib/database"
	"github.com/ValentinKolb/dFacade/lib/kv"
	"github.com/lni/dragonboat/v4/logger"
	"time"
)

var (
	Logger = logger.GetLogger("lockmgr")
)

type lockMgrImpl struct {
	backend kv.Backend
}

// NewLockManager creates a lock manager on top of a key-value backend.
// Locks are written to the backend directly, the facade's read cache is never involved.
func NewLockManager(backend kv.Backend) ILockManager {
	return &lockMgrImpl{
		backend: backend,
	}
}

func (lm *lockMgrImpl) AcquireLock(ctx context.Context, key string, timeout time.Duration) (bool, string, error) {
	ownerID := generateOwnerID()

	// Try to acquire the lock (by setting the value only if it doesn't exist - atomic operation)
	ok, err := lm.backend.SetNX(ctx, lockKey(key), ownerID, timeout)
	if err != nil {
		return false, "", database.WrapBackend("acquire lock "+key, err)
	}
	if !ok {
		// held by someone else
		return false, "", nil
	}

	Logger.Debugf("acquired lock %s", key)
	return true, ownerID, nil
}

func (lm *lockMgrImpl) ReleaseLock(ctx context.Context, key string, ownerID string) (bool, error) {
	// Delete the lock only if it is still owned by us (atomic operation)
	released, err := lm.backend.DeleteIfEquals(ctx, lockKey(key), ownerID)
	if err != nil {
		return false, database.WrapBackend("release lock "+key, err)
	}
	if released {
		Logger.Debugf("released lock %s", key)
		return true, nil
	}

	// Not deleted: either the lock is gone or someone else holds it
	_, found, err := lm.backend.Get(ctx, lockKey(key))
	if err != nil {
		return false, database.WrapBackend("release lock "+key, err)
	}
	return !found, nil
}
