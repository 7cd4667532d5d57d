// Package blobstore is the storage abstraction behind Publish.
//
// A BlobStore holds flat, slash-separated blob names. Implementations must be
// safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: a local directory; reads are memory mapped and writes go
//     through a temporary file renamed into place
//   - MemoryStore: an in-memory map, used by tests
//   - s3.Store and s3.DDBCommitStore: Amazon S3, optionally with a DynamoDB
//     table guarding the CURRENT pointer
//   - minio.Store: MinIO and other S3-compatible servers
//
// Blobs are immutable once written. Range reads let a caller fetch the
// header of a large .npy file without downloading the payload:
//
//	b, err := store.Open(ctx, "spikes.times.npy")
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//	r, err := b.ReadRange(ctx, 0, 128)
package blobstore
