// Package catalogsync orchestrates periodic catalog synchronization: the
// staleness decision, the size-capped fetch with bounded retries, the
// mark-and-sweep reconcile of the key and playlist registries, persistence of
// the raw payload plus sync metadata, and enqueueing of missing downloads.
//
// The state machine is Idle → Checking → Fetching → Reconciling → Persisting
// → Idle. A fetch or parse failure aborts the cycle before any registry
// mutation, so readers never observe a partially merged catalog.
package catalogsync
