// Package minio stores published ALF datasets on MinIO and other
// S3-compatible servers such as Ceph or Garage, without the AWS SDK.
//
// # Basic Usage
//
//	client, err := minio.Dial("localhost:9000", "minioadmin", "minioadmin", false)
//	if err != nil {
//	    return err
//	}
//	store := minio.NewStore(client, "ephys", "subject01/2024-05-01")
//	manifest, err := phyalf.Publish(ctx, "/data/alf", store)
package minio
