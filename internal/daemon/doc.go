// Package daemon runs the cooperative polling loop that drives catalog
// synchronization and download queue drains, with flock-based locking to
// prevent multiple instances from mutating the content store.
package daemon
