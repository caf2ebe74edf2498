// Package store defines the persistence contract for leads and opens the configured
// backend: the hosted data API, a local SQLite database or process memory.
package store
