package source

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string]string
	bucket  string
	key     string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket, f.key = *in.Bucket, *in.Key
	body, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestOpenLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icpw_2021.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("xlsx"), 0o600))

	for _, uri := range []string{path, "file://" + path} {
		rc, name, err := Fetcher{}.Open(context.Background(), uri)
		require.NoError(t, err, uri)
		assert.Equal(t, "icpw_2021.xlsx", name)
		assert.Equal(t, "xlsx", readAll(t, rc))
	}

	_, _, err := Fetcher{}.Open(context.Background(), filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/templates/icpw.xlsx" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("remote"))
	}))
	defer srv.Close()

	f := Fetcher{HTTP: srv.Client()}
	rc, name, err := f.Open(context.Background(), srv.URL+"/templates/icpw.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "icpw.xlsx", name)
	assert.Equal(t, "remote", readAll(t, rc))

	_, _, err = f.Open(context.Background(), srv.URL+"/nope.xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestOpenS3(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"icpw/2021/template.xlsx": "from-s3"}}
	f := Fetcher{S3: fake}

	rc, name, err := f.Open(context.Background(), "s3://icpw/2021/template.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "template.xlsx", name)
	assert.Equal(t, "from-s3", readAll(t, rc))
	assert.Equal(t, "icpw", fake.bucket)
	assert.Equal(t, "2021/template.xlsx", fake.key)

	_, _, err = f.Open(context.Background(), "s3://icpw/")
	assert.Error(t, err)
	_, _, err = Fetcher{}.Open(context.Background(), "s3://icpw/a.xlsx")
	assert.Error(t, err)
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	_, _, err := Fetcher{}.Open(context.Background(), "ftp://host/a.xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ftp")

	_, _, err = Fetcher{}.Open(context.Background(), "  ")
	assert.Error(t, err)
}
