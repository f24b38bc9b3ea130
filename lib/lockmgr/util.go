package lockmgr

import (
	"github.com/google/uuid"
)

// keyPrefix separates lock keys from regular values stored in the same backend
const keyPrefix = "lock:"

// generateOwnerID creates a new unique owner ID (random UUIDv4)
func generateOwnerID() string {
	return uuid.NewString()
}

// lockKey returns the backend key of a lock
func lockKey(key string) string {
	return keyPrefix + key
}
