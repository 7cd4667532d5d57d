// Package resource bounds what Publish may consume at once.
//
// A Controller combines three limits:
//
//   - Uploads: a weighted semaphore caps concurrent blob uploads.
//   - Memory: a weighted semaphore caps the bytes of file contents held in
//     memory by in-flight uploads. Acquire blocks until enough is released.
//   - IO: a token bucket caps upload throughput in bytes per second.
//
// A nil *Controller imposes no limits.
//
//	rc := resource.NewController(resource.Config{
//	    MaxUploads:       4,
//	    MemoryLimitBytes: 512 << 20,
//	    BytesPerSec:      50 << 20,
//	})
//	if err := rc.AcquireUpload(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseUpload()
package resource
