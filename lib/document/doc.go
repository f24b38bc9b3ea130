// Package document implements the document facade: CRUD on named collections, keyed by an
// application chosen identifier field, with a read-through TTL cache.
//
// Backends: package document/mongo (MongoDB) and package document/memory (in-process).
package document
