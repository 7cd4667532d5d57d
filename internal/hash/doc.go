// Package hash computes CRC32-Castagnoli checksums for published blobs.
//
// Publish records the checksum of every file's uncompressed bytes in the
// manifest and Fetch verifies it after decompression. The S3 backend sends
// the same checksum with each PutObject so the service can reject corrupted
// uploads.
//
//	sum := hash.CRC32C(data)
//
// For streaming checksums:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	sum := h.Sum32()
package hash
