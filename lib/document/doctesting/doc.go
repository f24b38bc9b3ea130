// Package doctesting provides a conformance suite for document.Backend implementations.
// Stored values in the suite are strings, maps and arrays only, numeric widths differ between backends.
package doctesting
