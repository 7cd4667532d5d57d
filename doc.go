// Package phyalf converts spike sorting output into ALF datasets.
//
// A sorting directory written by Kilosort and curated in phy holds spike
// times, cluster assignments, whitened templates and principal component
// features as .npy files next to a params.py. phyalf turns it into the
// ALF layout: spikes.*, clusters.*, channels.* and templates.* files with
// unwhitened, scaled amplitudes, depths along the probe and per-cluster
// waveform channels.
//
// # Quick Start
//
//	ctx := context.Background()
//	src, _ := model.Load("./kilosort")
//	out, _ := phyalf.Convert(ctx, src, "./alf",
//	    phyalf.WithLabel("probe00"),
//	    phyalf.WithAmplitudeScale(2.34375e-6),
//	)
//	_ = out.Describe(os.Stdout)
//
// Existing outputs are left alone unless WithForce is set. Convert reports
// progress per stage through WithProgress and emits structured logs through
// WithLogger.
//
// # Publishing
//
// A converted directory can be uploaded to any blobstore.BlobStore (local
// directory, S3 or MinIO). Every file is checksummed with CRC32C and
// optionally compressed. The manifest is written after all blobs, and the
// CURRENT pointer after the manifest, so readers never see a partial
// dataset:
//
//	store := blobstore.NewLocalStore("/data/published/ses01")
//	m, _ := phyalf.Publish(ctx, "./alf", store, phyalf.WithCompression("zstd"))
//	_, _ = phyalf.Download(ctx, store, "./copy", nil)
//
// The phyalf command in cmd/phyalf wraps both operations.
package phyalf
