// Package main hosts the dialtone CLI entrypoint and command graph.
//
// The Cobra-based command tree covers catalog synchronization, key and
// playlist inspection, download queue maintenance, ledger history, and
// configuration scaffolding. Commands operate directly on the on-disk content
// store; mutating commands refuse to run while the daemon holds the instance
// lock.
package main
