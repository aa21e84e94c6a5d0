package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/hyperhist/blobstore"
)

// currentName is the blob name persistence uses for generation pointers.
const currentName = "CURRENT"

// ErrConcurrentModification is returned when another writer committed the
// same version first.
var ErrConcurrentModification = errors.New("s3: concurrent modification detected")

// DDBClient is the subset of the DynamoDB client used by DDBCommitStore.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DDBCommitStore stores blobs in an inner store but keeps every CURRENT
// pointer in DynamoDB. Each commit writes version n+1 with a conditional
// put, so of two writers racing on the same histogram exactly one wins and
// the other gets ErrConcurrentModification. S3 alone offers no such
// compare-and-swap.
//
// Table schema:
//   - partition key "base_uri" (S): baseURI + "/" + histogram name
//   - sort key "version" (N)
//   - attribute "generation" (S)
//
//	aws dynamodb create-table \
//	  --table-name hyperhist-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	inner     blobstore.BlobStore
	ddb       DDBClient
	tableName string
	baseURI   string
}

var _ blobstore.BlobStore = (*DDBCommitStore)(nil)

// NewDDBCommitStore wraps inner. baseURI (e.g. "s3://bucket/prefix")
// namespaces the pointers in the table.
func NewDDBCommitStore(inner blobstore.BlobStore, ddb DDBClient, tableName, baseURI string) *DDBCommitStore {
	return &DDBCommitStore{inner: inner, ddb: ddb, tableName: tableName, baseURI: baseURI}
}

func isCurrent(name string) bool { return path.Base(name) == currentName }

func (s *DDBCommitStore) partition(name string) string {
	return s.baseURI + "/" + path.Dir(name)
}

// Open implements blobstore.BlobStore. CURRENT blobs are served from the
// latest committed version.
func (s *DDBCommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if !isCurrent(name) {
		return s.inner.Open(ctx, name)
	}
	version, gen, err := s.latest(ctx, s.partition(name))
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, fmt.Errorf("s3: %s: %w", name, blobstore.ErrNotFound)
	}
	return &pointerBlob{content: []byte(gen)}, nil
}

// Put implements blobstore.BlobStore. CURRENT blobs are committed with a
// conditional write.
func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	if isCurrent(name) {
		return s.commit(ctx, s.partition(name), string(data))
	}
	return s.inner.Put(ctx, name, data)
}

// Create implements blobstore.BlobStore.
func (s *DDBCommitStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	if isCurrent(name) {
		return nil, fmt.Errorf("s3: %s must be written with Put", name)
	}
	return s.inner.Create(ctx, name)
}

// Delete implements blobstore.BlobStore. Deleting CURRENT drops every
// committed version.
func (s *DDBCommitStore) Delete(ctx context.Context, name string) error {
	if !isCurrent(name) {
		return s.inner.Delete(ctx, name)
	}
	part := s.partition(name)
	versions, err := s.versions(ctx, part)
	if err != nil {
		return err
	}
	for _, v := range versions {
		_, err := s.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tableName),
			Key: map[string]types.AttributeValue{
				"base_uri": &types.AttributeValueMemberS{Value: part},
				"version":  &types.AttributeValueMemberN{Value: strconv.FormatUint(v, 10)},
			},
		})
		if err != nil {
			return fmt.Errorf("s3: delete commit %d: %w", v, err)
		}
	}
	return nil
}

// List implements blobstore.BlobStore. CURRENT pointers are not listed.
func (s *DDBCommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

func (s *DDBCommitStore) query(ctx context.Context, part string, limit *int32, projection *string) (*dynamodb.QueryOutput, error) {
	resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: part},
		},
		ScanIndexForward:     aws.Bool(false),
		Limit:                limit,
		ProjectionExpression: projection,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: query commits: %w", err)
	}
	return resp, nil
}

func (s *DDBCommitStore) latest(ctx context.Context, part string) (uint64, string, error) {
	resp, err := s.query(ctx, part, aws.Int32(1), nil)
	if err != nil || len(resp.Items) == 0 {
		return 0, "", err
	}
	item := resp.Items[0]
	version, err := versionOf(item)
	if err != nil {
		return 0, "", err
	}
	gen, ok := item["generation"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("s3: commit item without generation")
	}
	return version, gen.Value, nil
}

func (s *DDBCommitStore) versions(ctx context.Context, part string) ([]uint64, error) {
	resp, err := s.query(ctx, part, nil, aws.String("version"))
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, len(resp.Items))
	for _, item := range resp.Items {
		v, err := versionOf(item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func versionOf(item map[string]types.AttributeValue) (uint64, error) {
	attr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.New("s3: commit item without version")
	}
	v, err := strconv.ParseUint(attr.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("s3: parse commit version: %w", err)
	}
	return v, nil
}

func (s *DDBCommitStore) commit(ctx context.Context, part, gen string) error {
	current, _, err := s.latest(ctx, part)
	if err != nil {
		return err
	}
	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":   &types.AttributeValueMemberS{Value: part},
			"version":    &types.AttributeValueMemberN{Value: strconv.FormatUint(current+1, 10)},
			"generation": &types.AttributeValueMemberS{Value: gen},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("s3: commit version %d: %w", current+1, err)
	}
	return nil
}

// pointerBlob serves a CURRENT pointer read from DynamoDB.
type pointerBlob struct {
	content []byte
}

func (b *pointerBlob) Close() error { return nil }

func (b *pointerBlob) Size() int64 { return int64(len(b.content)) }

func (b *pointerBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off >= int64(len(b.content)) {
		return 0, io.EOF
	}
	n := copy(p, b.content[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *pointerBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= int64(len(b.content)) {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	end := min(off+length, int64(len(b.content)))
	return io.NopCloser(bytes.NewReader(b.content[off:end])), nil
}

func (b *pointerBlob) Bytes() ([]byte, error) { return b.content, nil }
