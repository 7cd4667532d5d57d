// Package s3 stores published ALF datasets in Amazon S3.
//
// # Usage
//
//	awsCfg, err := s3.LoadAWSConfig(ctx, "eu-central-1")
//	if err != nil {
//	    return err
//	}
//	store := s3.NewStore(s3.NewClient(awsCfg, ""), "my-bucket", "sessions/2024-05-01")
//	manifest, err := phyalf.Publish(ctx, "/data/alf", store)
//
// Store reads with ranged GETs, writes small blobs with a single
// CRC32C-checksummed PUT and streams larger ones through a multipart
// uploader. DDBCommitStore wraps a Store and keeps the CURRENT pointer in a
// DynamoDB table, so concurrent publishers cannot overwrite each other's
// commits.
package s3
