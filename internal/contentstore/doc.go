// Package contentstore owns on-disk catalog state: the raw catalog blob, sync
// metadata, and cached audio files addressed by deterministic names derived
// from their remote locators.
//
// Storage sits behind the Backend interface with disk and in-memory
// implementations. When the disk backend cannot be initialized the store
// degrades to memory-only operation: every boot then behaves like a cold
// cache, and Available reports false so callers can skip persistence.
package contentstore
