// Package database defines the shared vocabulary of all facades.
//
// Key Components:
//
//   - BackendType: An explicit enum of backend families (redis, mongodb, mysql, ...).
//     It is the key of the credential registry (see lib/config) and is reported
//     by every facade.
//
//   - Database Interface: The capability interface every facade satisfies
//     (Type, SupportsFeature, Ping, Close). Conformance is checked at compile time.
//
//   - Feature Flags: Bit flags advertising optional capabilities such as caching,
//     pub/sub or cursors. Multiple flags can be checked at once with bitwise OR.
//
//   - Error System: A single *Error type carrying an ErrorCode. Use errors.Is with
//     the sentinels (ErrNotFound, ErrBackend, ...) to branch on the error kind;
//     errors.Unwrap returns the original driver error where there is one.
//
// Related Packages:
//
//   - lib/kv: key-value facade (redis, memory)
//   - lib/document: document facade (mongodb, memory)
//   - lib/relational: relational facade (mysql, mariadb, postgresql, sqlite)
package database
