// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: Represents an open file with read/write/sync capabilities
//   - [FileSystem]: Abstracts filesystem operations (open, remove, rename, etc.)
//
// # Implementations
//
//   - [LocalFS]: Production implementation using standard os package
//   - [FaultyFS]: Test utility for fault injection and mutation recording
//
// # Usage
//
// Production code should use fs.Default (which is [LocalFS]):
//
//	n, err := fs.CopyFile(fs.Default, "spike_clusters.npy", "out/spikes.clusters.npy")
//
// Tests can inject [FaultyFS] to simulate failures or to assert that an
// operation did not touch the disk:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("spikes.amps", fs.Fault{FailAfterBytes: 0})
//	// inject ffs into component under test
//	assert.Empty(t, ffs.Ops())
//
// This package does not take context.Context parameters. Local filesystem
// calls are not interruptible at the syscall level.
package fs
