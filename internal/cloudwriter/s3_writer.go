package cloudwriter

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

const uploadTimeout = 2 * time.Minute

// ObjectPutter is the part of the S3 client the writer needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Writer struct {
	client      ObjectPutter
	obj         Object
	contentType string
	buffer      bytes.Buffer
	closed      bool
}

type S3WriterFactory struct {
	client      ObjectPutter
	contentType string
}

func NewS3WriterFactory(ctx context.Context, region string) (*S3WriterFactory, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return NewS3WriterFactoryFromClient(s3.NewFromConfig(cfg)), nil
}

func NewS3WriterFactoryFromClient(client ObjectPutter) *S3WriterFactory {
	return &S3WriterFactory{client: client}
}

// WithContentType sets the Content-Type of objects created afterwards.
func (f *S3WriterFactory) WithContentType(contentType string) *S3WriterFactory {
	return &S3WriterFactory{client: f.client, contentType: contentType}
}

func (f *S3WriterFactory) Create(obj Object) (Writer, error) {
	if obj.Bucket == "" || obj.Key == "" {
		return nil, fmt.Errorf("s3 writer needs a bucket and a key, got %q and %q", obj.Bucket, obj.Key)
	}
	return &S3Writer{client: f.client, obj: obj, contentType: f.contentType}, nil
}

func (w *S3Writer) Object() Object { return w.obj }

func (w *S3Writer) Write(data []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("write to closed object %s", w.obj)
	}
	return w.buffer.Write(data)
}

// Close uploads the buffered object. Closing twice is a no-op.
func (w *S3Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	input := &s3.PutObjectInput{
		Bucket: aws.String(w.obj.Bucket),
		Key:    aws.String(w.obj.Key),
		Body:   bytes.NewReader(w.buffer.Bytes()),
	}
	if w.contentType != "" {
		input.ContentType = aws.String(w.contentType)
	}
	if _, err := w.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("unable to upload %s: %w", w.obj, err)
	}
	logrus.WithFields(logrus.Fields{
		"component": "cloudwriter",
		"object":    w.obj.String(),
		"bytes":     w.buffer.Len(),
	}).Info("uploaded object")
	return nil
}
