/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package risk

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// Source fetches the raw bytes of a model artifact.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	String() string
}

// S3Options configures access to artifacts stored in S3 or an S3-compatible store.
type S3Options struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// ErrNoArtifact is returned when no artifact location is configured.
var ErrNoArtifact = errors.New("no model artifact configured")

// ParseSource resolves an artifact URI. "s3://bucket/key" reads from S3 and any
// other value is treated as a local path.
func ParseSource(uri string, opts S3Options) (Source, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, ErrNoArtifact
	}
	if !strings.HasPrefix(uri, "s3://") {
		return FileSource{Path: strings.TrimPrefix(uri, "file://")}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid artifact uri %q: %w", uri, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return nil, fmt.Errorf("artifact uri %q must name a bucket and a key", uri)
	}
	return NewS3Source(u.Host, key, opts)
}

// FileSource reads an artifact from the local filesystem.
type FileSource struct {
	Path string
}

func (f FileSource) Fetch(_ context.Context) ([]byte, error) {
	return os.ReadFile(f.Path)
}

func (f FileSource) String() string { return f.Path }

// S3Source downloads an artifact object from a bucket.
type S3Source struct {
	Bucket     string
	Key        string
	downloader *s3manager.Downloader
}

func NewS3Source(bucket, key string, opts S3Options) (*S3Source, error) {
	cfg := &aws.Config{}
	if opts.Region != "" {
		cfg.Region = aws.String(opts.Region)
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	if opts.AccessKeyID != "" {
		cfg.Credentials = credentials.NewStaticCredentials(opts.AccessKeyID, opts.SecretAccessKey, "")
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}
	return &S3Source{Bucket: bucket, Key: key, downloader: s3manager.NewDownloader(sess)}, nil
}

func (s *S3Source) Fetch(ctx context.Context) ([]byte, error) {
	buf := aws.NewWriteAtBuffer([]byte{})
	_, err := s.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *S3Source) String() string { return "s3://" + s.Bucket + "/" + s.Key }
