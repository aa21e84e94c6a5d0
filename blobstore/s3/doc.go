// Package s3 stores histogram tables in Amazon S3.
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	blobs := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "histograms/")
//	store := persistence.New(blobs)
//
// Reads are ranged GETs; wrap the store in blobstore.CachingStore to keep
// hot table pages local. Uploads stream through the multipart uploader with
// CRC32C validation. ExpressStore targets S3 Express One Zone directory
// buckets. DDBCommitStore keeps CURRENT pointers in DynamoDB so that
// concurrent writers from different processes cannot lose a commit.
package s3
