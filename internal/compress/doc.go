// Package compress frames blobs for publishing.
//
// A framed blob is a sequence of blocks. Each block starts with an 8 byte
// little-endian header [uncompressed size uint32][stored size uint32]
// followed by the stored bytes. A stored size of 0 means the block is kept
// uncompressed because compression did not pay off. TypeNone leaves the
// payload untouched and adds no framing.
package compress
