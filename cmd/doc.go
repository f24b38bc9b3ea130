// Package cmd implements the command-line interface of dFacade. Every command group
// opens one facade, runs a single operation against it and closes it again.
//
// The package is organized into several subpackages:
//
//   - kv: Key-value operations on redis (get, set, del, publish, subscribe, perf)
//   - doc: Document operations on mongodb
//   - sql: Table and row operations on mysql, mariadb, postgresql or sqlite
//   - lock: Distributed locks on redis (acquire, release)
//   - config: Inspection of the loaded backend credentials
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dfacade -help for a list of all commands.
package cmd
