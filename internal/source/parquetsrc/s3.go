package parquetsrc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	pqsource "github.com/xitongsys/parquet-go/source"
)

// ObjectGetter is the part of the S3 client the source needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// NewS3 reads s3://bucket/key. The object is fetched in full on every scan so
// a replaced dataset is picked up by the next query.
func NewS3(client ObjectGetter, bucket, key string) *Source {
	name := fmt.Sprintf("s3://%s/%s", bucket, key)
	return New(name, func(ctx context.Context) (pqsource.ParquetFile, error) {
		out, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("get object: %w", err)
		}
		defer out.Body.Close()

		data, err := io.ReadAll(out.Body)
		if err != nil {
			return nil, fmt.Errorf("download object: %w", err)
		}
		return NewBufferFile(data), nil
	})
}

// NewS3Client loads the default AWS credential chain for region.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// BufferFile is a read-only parquet file held in memory. Open hands out
// independent cursors over the same bytes, which the column readers need.
type BufferFile struct {
	data []byte
	r    *bytes.Reader
}

func NewBufferFile(data []byte) *BufferFile {
	return &BufferFile{data: data, r: bytes.NewReader(data)}
}

func (b *BufferFile) Open(name string) (pqsource.ParquetFile, error) {
	return NewBufferFile(b.data), nil
}

func (b *BufferFile) Create(name string) (pqsource.ParquetFile, error) {
	return nil, errors.New("buffer file is read only")
}

func (b *BufferFile) Read(p []byte) (int, error) { return b.r.Read(p) }

func (b *BufferFile) Seek(offset int64, whence int) (int64, error) {
	return b.r.Seek(offset, whence)
}

func (b *BufferFile) Write(p []byte) (int, error) {
	return 0, errors.New("buffer file is read only")
}

func (b *BufferFile) Close() error { return nil }
