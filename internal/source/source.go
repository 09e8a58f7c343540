// Package source resolves where an input template comes from: a local path,
// an http(s) URL or an s3://bucket/key object.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used to download templates.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config configures the S3 client. Credentials come from the default AWS
// chain.
type S3Config struct {
	Region    string
	Endpoint  string
	PathStyle bool
}

// NewS3Client builds an S3 client, optionally pointed at an S3-compatible
// endpoint such as MinIO.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// Fetcher opens templates. HTTP defaults to http.DefaultClient; S3 may be
// nil when no s3:// sources are expected.
type Fetcher struct {
	HTTP *http.Client
	S3   S3API
}

// Open returns a reader over the template named by uri and a short name for
// logging. The caller closes the reader.
func (f Fetcher) Open(ctx context.Context, uri string) (io.ReadCloser, string, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, "", errors.New("empty template source")
	}

	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain paths, including Windows drive letters.
		return openFile(uri)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return openFile(u.Path)
	case "http", "https":
		return f.openHTTP(ctx, uri, u)
	case "s3":
		return f.openS3(ctx, u)
	default:
		return nil, "", fmt.Errorf("unsupported template source scheme %q", u.Scheme)
	}
}

func openFile(path string) (io.ReadCloser, string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open template: %w", err)
	}
	return fh, filepath.Base(path), nil
}

func (f Fetcher) openHTTP(ctx context.Context, uri string, u *url.URL) (io.ReadCloser, string, error) {
	client := f.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request template: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp.Body, baseName(u.Path), nil
}

func (f Fetcher) openS3(ctx context.Context, u *url.URL) (io.ReadCloser, string, error) {
	if f.S3 == nil {
		return nil, "", errors.New("s3 source requested but no s3 client configured")
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, "", fmt.Errorf("s3 source %q needs a bucket and a key", u.String())
	}

	out, err := f.S3.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, "", fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	return out.Body, baseName(key), nil
}

func baseName(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[i+1:]
	}
	if p == "" {
		return "template.xlsx"
	}
	return p
}
