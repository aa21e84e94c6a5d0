package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/hyperhist/blobstore"
	miniostore "github.com/hupe1980/hyperhist/blobstore/minio"
	s3store "github.com/hupe1980/hyperhist/blobstore/s3"
	"github.com/hupe1980/hyperhist/codec"
	"github.com/hupe1980/hyperhist/internal/cache"
	"github.com/hupe1980/hyperhist/internal/config"
	"github.com/hupe1980/hyperhist/persistence"
	"github.com/hupe1980/hyperhist/resource"
)

func openStore(ctx context.Context, cfg config.StoreConfig) (*persistence.Store, error) {
	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		return nil, err
	}

	memory, ioRate, err := cfg.Limits()
	if err != nil {
		return nil, err
	}
	var rc *resource.Controller
	if memory > 0 || ioRate > 0 {
		rc = resource.NewController(resource.Config{MemoryLimitBytes: memory, IOLimitBytesPerSec: ioRate})
	}

	blobCache, err := cfg.BlobCacheBytes()
	if err != nil {
		return nil, err
	}
	if blobCache > 0 {
		blobs = blobstore.NewCachingStore(blobs, cache.NewLRUBlockCache(blobCache, rc), blobstore.DefaultBlockSize)
	}

	compression, err := persistence.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	c, ok := codec.ByName(cfg.Codec)
	if !ok {
		return nil, fmt.Errorf("unknown codec %q (have %v)", cfg.Codec, codec.Names())
	}
	pageCache, err := cfg.CacheBytes()
	if err != nil {
		return nil, err
	}

	return persistence.New(blobs,
		persistence.WithPageRows(cfg.PageRows),
		persistence.WithCompression(compression),
		persistence.WithCodec(c),
		persistence.WithCacheBytes(pageCache),
		persistence.WithResourceController(rc),
	), nil
}

func openBlobs(ctx context.Context, cfg config.StoreConfig) (blobstore.BlobStore, error) {
	switch cfg.Backend {
	case "memory":
		return blobstore.NewMemoryStore(), nil
	case "local":
		return blobstore.NewLocalStore(cfg.Path), nil
	case "s3":
		return openS3(ctx, cfg)
	case "minio":
		client, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return miniostore.NewStore(client, cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidBackend, cfg.Backend)
	}
}

func openS3(ctx context.Context, cfg config.StoreConfig) (blobstore.BlobStore, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
			o.UsePathStyle = true
		}
	})
	var blobs blobstore.BlobStore = s3store.NewStore(client, cfg.Bucket, cfg.Prefix)

	if cfg.CommitTable != "" {
		ddb := dynamodb.NewFromConfig(awsCfg)
		baseURI := "s3://" + cfg.Bucket
		if cfg.Prefix != "" {
			baseURI += "/" + cfg.Prefix
		}
		blobs = s3store.NewDDBCommitStore(blobs, ddb, cfg.CommitTable, baseURI)
	}
	return blobs, nil
}
