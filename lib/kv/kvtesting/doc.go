// Package kvtesting provides a conformance suite for kv.Backend implementations.
//
// Every backend package runs it from its own tests:
//
//	func TestBackend(t *testing.T) {
//		kvtesting.RunBackendTests(t, "memory", func(t *testing.T) (kv.Backend, func(time.Duration)) {
//			...
//		})
//	}
package kvtesting
