// Package minio stores hyperhist histograms on MinIO and other
// S3-compatible servers (Ceph, Garage, SeaweedFS) through the MinIO client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	blobs := minioblob.NewStore(client, "histograms", "runs")
//	h, err := hyperhist.Load(ctx, persistence.New(blobs), "pt-eta")
//
// Uploads are streamed, so table files never have to fit in memory.
package minio
