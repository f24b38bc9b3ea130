package database

import "context"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// BackendType identifies a backend family. It is the key of the credential registry
// and is reported by every facade through Database.Type.
type BackendType string

const (
	BackendRedis      BackendType = "redis"
	BackendMongoDB    BackendType = "mongodb"
	BackendMySQL      BackendType = "mysql"
	BackendMariaDB    BackendType = "mariadb"
	BackendPostgreSQL BackendType = "postgresql"
	BackendSQLite     BackendType = "sqlite"
	BackendMemory     BackendType = "memory"
)

// KnownBackends lists every backend type that can be configured through the registry.
// The memory backend needs no credentials and is therefore not part of this list.
var KnownBackends = []BackendType{
	BackendRedis,
	BackendMongoDB,
	BackendMySQL,
	BackendMariaDB,
	BackendPostgreSQL,
	BackendSQLite,
}

// ParseBackendType converts a string into a known BackendType.
func ParseBackendType(s string) (BackendType, error) {
	for _, t := range append(KnownBackends, BackendMemory) {
		if string(t) == s {
			return t, nil
		}
	}
	return "", NewError(CodeConfiguration, "unknown backend type: "+s)
}

// Feature represents facade features as bit flags
type Feature uint64

const (
	FeatureCache  Feature = 1 << iota // Reads are served from an in-process TTL cache
	FeaturePubSub                     // Channel subscribe/publish
	FeatureAsync                      // Asynchronous variants of every operation
	FeatureBatch                      // Batch writes in a single backend call
	FeatureLocks                      // Conditional writes with expiry (used by lockmgr)
	FeatureSchema                     // Table creation from a column map
	FeatureCursor                     // Caller-closable result cursors
	FeatureAdmin                      // Administrative passthroughs (rename, drop)
)

func (f Feature) String() string {
	switch f {
	case FeatureCache:
		return "Cache"
	case FeaturePubSub:
		return "PubSub"
	case FeatureAsync:
		return "Async"
	case FeatureBatch:
		return "Batch"
	case FeatureLocks:
		return "Locks"
	case FeatureSchema:
		return "Schema"
	case FeatureCursor:
		return "Cursor"
	case FeatureAdmin:
		return "Admin"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// Database is the capability interface implemented by every facade.
// It replaces the runtime "must be a subclass of Database" check with compile-time conformance.
type Database interface {
	// Type returns the backend family the facade talks to.
	Type() BackendType

	// SupportsFeature checks if the facade supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// Ping issues a round-trip to the backend.
	Ping(ctx context.Context) (err error)

	// Close releases the connection or pool held by the facade.
	// Using the facade after Close returns the driver's error.
	Close() (err error)
}
