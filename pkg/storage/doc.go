// Package storage groups the key-value backends records can be written to.
//
// Every backend satisfies the two-method Get/Set capability the plugin
// depends on:
//
//	Get(ctx, key) ([]byte, bool, error)
//	Set(ctx, key, value) error
//
// Get reports ok=false for keys that were never written. Values are opaque
// bytes; backends never interpret them.
//
//   - memory keeps values in a map and is meant for tests and examples.
//   - filestore writes one file per key using temp file and rename.
//   - sqlstore upserts rows through gorm.
//   - objectstore stores one object per key in an S3 compatible bucket.
//   - compress wraps any backend and compresses values at rest.
package storage
