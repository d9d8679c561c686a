package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Options configures S3 store construction. Empty credential fields
// fall back to the ambient AWS credential chain.
type S3Options struct {
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

// S3 is a Store over a single S3 bucket. Paths are object keys.
type S3 struct {
	client *s3.Client
	bucket string
}

// NewS3 builds an S3 store for bucket from opts.
func NewS3(ctx context.Context, bucket string, opts S3Options) (*S3, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          200,
			MaxIdleConnsPerHost:   100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: 30 * time.Second,
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithHTTPClient(httpClient),
	}
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3WithClient(client, bucket), nil
}

// NewS3WithClient wraps an existing client.
func NewS3WithClient(client *s3.Client, bucket string) *S3 {
	return &S3{client: client, bucket: bucket}
}

func (s *S3) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotExist, s.bucket, key)
		}
		return nil, err
	}
	return resp.Body, nil
}

// Create spools writes to a temp file and uploads the object when the
// returned writer is closed.
func (s *S3) Create(ctx context.Context, key string) (io.WriteCloser, error) {
	tmp, err := os.CreateTemp("", "manifestly-upload-*")
	if err != nil {
		return nil, err
	}
	return &s3Upload{ctx: ctx, store: s, key: key, tmp: tmp}, nil
}

func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	isFile, err := s.IsFile(ctx, key)
	if err != nil || isFile {
		return isFile, err
	}
	return s.IsDir(ctx, key)
}

func (s *S3) Delete(ctx context.Context, key string) error {
	// DeleteObject succeeds for absent keys, so probe first to keep
	// the Store contract uniform across backends.
	exists, err := s.IsFile(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: s3://%s/%s", ErrNotExist, s.bucket, key)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	return err
}

func (s *S3) List(ctx context.Context, root string) ([]string, error) {
	prefix := root
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: &s.bucket,
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue // folder marker
			}
			keys = append(keys, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *S3) IsFile(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *S3) IsDir(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return true, nil
	}
	prefix := strings.TrimSuffix(key, "/") + "/"
	resp, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  &s.bucket,
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, err
	}
	return aws.ToInt32(resp.KeyCount) > 0, nil
}

type s3Upload struct {
	ctx   context.Context
	store *S3
	key   string
	tmp   *os.File
}

func (u *s3Upload) Write(p []byte) (int, error) {
	return u.tmp.Write(p)
}

func (u *s3Upload) Close() error {
	defer os.Remove(u.tmp.Name())
	defer u.tmp.Close()

	info, err := u.tmp.Stat()
	if err != nil {
		return err
	}
	if _, err := u.tmp.Seek(0, io.SeekStart); err != nil {
		return err
	}

	_, err = u.store.client.PutObject(u.ctx, &s3.PutObjectInput{
		Bucket:        &u.store.bucket,
		Key:           &u.key,
		Body:          u.tmp,
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", u.store.bucket, u.key, err)
	}
	return nil
}

var _ Store = (*S3)(nil)
