package cloudwriter

import (
	"fmt"
	"io"
	"strings"
)

// Object names a blob in an object store.
type Object struct {
	Bucket string
	Key    string
}

// ParseObject splits "bucket/key/with/slashes". An s3:// prefix is accepted.
func ParseObject(ref string) (Object, error) {
	ref = strings.TrimPrefix(ref, "s3://")
	bucket, key, ok := strings.Cut(ref, "/")
	if !ok || bucket == "" || key == "" {
		return Object{}, fmt.Errorf("object reference %q is not bucket/key", ref)
	}
	return Object{Bucket: bucket, Key: key}, nil
}

func (o Object) String() string { return "s3://" + o.Bucket + "/" + o.Key }

// Writer buffers an object and uploads it on Close.
type Writer interface {
	io.WriteCloser
	Object() Object
}

type Factory interface {
	Create(obj Object) (Writer, error)
}
