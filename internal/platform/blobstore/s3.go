package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

const (
	sseAlgorithm = "AES256"
	shaMetaKey   = "Sha256"
)

// S3Store keeps blobs in a single bucket under an optional key prefix.
// Objects are written with server-side encryption.
type S3Store struct {
	client s3iface.S3API
	bucket string
	prefix string
}

// NewS3Store builds a client from the default AWS credential chain.
func NewS3Store(region, bucket, prefix string) (*S3Store, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return NewS3StoreWithClient(s3.New(sess), bucket, prefix), nil
}

func NewS3StoreWithClient(client s3iface.S3API, bucket, prefix string) *S3Store {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) objectKey(key string) (string, error) {
	if !validKey(key) {
		return "", ErrInvalidKey
	}
	return s.prefix + key, nil
}

func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, contentType string, maxSize int64) (*Object, error) {
	objKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	data, err := readLimited(r, maxSize)
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	sum := fmt.Sprintf("%x", sha256.Sum256(data))

	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(objKey),
		Body:                 bytes.NewReader(data),
		ContentLength:        aws.Int64(int64(len(data))),
		ContentType:          aws.String(contentType),
		ServerSideEncryption: aws.String(sseAlgorithm),
		Metadata:             map[string]*string{shaMetaKey: aws.String(sum)},
	})
	if err != nil {
		return nil, fmt.Errorf("put s3 object %s: %w", objKey, err)
	}

	return &Object{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		SHA256:      sum,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, *Object, error) {
	objKey, err := s.objectKey(key)
	if err != nil {
		return nil, nil, err
	}
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if isS3NotFound(err) {
		return nil, nil, ErrBlobNotFound
	} else if err != nil {
		return nil, nil, fmt.Errorf("get s3 object %s: %w", objKey, err)
	}

	obj := &Object{
		Key:         key,
		ContentType: aws.StringValue(out.ContentType),
		Size:        aws.Int64Value(out.ContentLength),
		CreatedAt:   aws.TimeValue(out.LastModified),
	}
	for k, v := range out.Metadata {
		if strings.EqualFold(k, shaMetaKey) {
			obj.SHA256 = aws.StringValue(v)
		}
	}
	return out.Body, obj, nil
}

// Delete is idempotent on the S3 side; a missing key is not reported.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	objKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("delete s3 object %s: %w", objKey, err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	if err == nil {
		return false
	}
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Code() == s3.ErrCodeNoSuchKey
	}
	return false
}
