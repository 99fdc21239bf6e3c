package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"societycore/internal/blob/core"
)

func newMockStore(t *testing.T) *Store {
	t.Helper()
	rt := &fakeS3{objects: map[string]fakeObject{}}
	s, err := New(context.Background(), Config{
		Region:          "ap-south-1",
		Bucket:          "mock-bucket",
		Endpoint:        "https://mock.s3.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
		PresignTTL:      5 * time.Minute,
		HTTPClient:      &http.Client{Transport: rt},
	})
	require.NoError(t, err)
	return s
}

func TestS3StoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newMockStore(t)
	assert.Equal(t, core.DriverS3, s.Driver())
	assert.Equal(t, "mock-bucket", s.Bucket())

	info, err := s.Put(ctx, "org-1/documents/a.txt", bytes.NewReader([]byte("hello")), core.PutOptions{ContentType: "text/plain"})
	require.NoError(t, err)
	assert.EqualValues(t, 5, info.Size)
	assert.Equal(t, "etag123", info.ETag)

	_, err = s.Put(ctx, "org-1/documents/a.txt", bytes.NewReader([]byte("again")), core.PutOptions{})
	require.ErrorIs(t, err, core.ErrExists)

	_, rc, err := s.Get(ctx, "org-1/documents/a.txt")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "hello", string(body))

	list, err := s.List(ctx, "org-1/")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "org-1/documents/a.txt", list[0].Key)

	url, err := s.PresignURL(ctx, "org-1/documents/a.txt", core.SignedURLOptions{})
	require.NoError(t, err)
	assert.Contains(t, url, "mock-bucket/org-1/documents/a.txt")
	assert.Contains(t, url, "X-Amz-Expires=300")
	_, err = s.PresignURL(ctx, "org-1/documents/a.txt", core.SignedURLOptions{Method: http.MethodPut})
	require.ErrorIs(t, err, core.ErrUnsupported)

	existed, err := s.Delete(ctx, "org-1/documents/a.txt")
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = s.Delete(ctx, "org-1/documents/a.txt")
	require.NoError(t, err)
	assert.False(t, existed)

	_, err = s.Head(ctx, "org-1/documents/a.txt")
	require.ErrorIs(t, err, core.ErrNotFound)
	_, _, err = s.Get(ctx, "org-1/documents/a.txt")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.ErrorContains(t, err, "bucket required")
}

type fakeObject struct {
	body        []byte
	contentType string
}

// fakeS3 answers the subset of the S3 REST API the store uses.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := ""
	if parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2); len(parts) == 2 {
		key = parts[1]
	}
	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		return f.list(req.URL.Query().Get("prefix")), nil
	}
	switch req.Method {
	case http.MethodHead, http.MethodGet:
		obj, ok := f.objects[key]
		if !ok {
			return respond(http.StatusNotFound, nil, nil), nil
		}
		h := http.Header{
			"Content-Length": {strconv.Itoa(len(obj.body))},
			"Content-Type":   {obj.contentType},
			"Etag":           {`"etag123"`},
			"Last-Modified":  {time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Format(http.TimeFormat)},
		}
		if req.Method == http.MethodHead {
			return respond(http.StatusOK, h, nil), nil
		}
		return respond(http.StatusOK, h, obj.body), nil
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
		f.objects[key] = fakeObject{body: body, contentType: req.Header.Get("Content-Type")}
		return respond(http.StatusOK, http.Header{"Etag": {`"etag123"`}}, nil), nil
	case http.MethodDelete:
		delete(f.objects, key)
		return respond(http.StatusNoContent, nil, nil), nil
	}
	return respond(http.StatusNotImplemented, nil, nil), nil
}

func (f *fakeS3) list(prefix string) *http.Response {
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
	for _, k := range keys {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2026-01-01T00:00:00Z</LastModified></Contents>", k, len(f.objects[k].body))
	}
	b.WriteString("</ListBucketResult>")
	return respond(http.StatusOK, http.Header{"Content-Type": {"application/xml"}}, []byte(b.String()))
}

func respond(status int, h http.Header, body []byte) *http.Response {
	if h == nil {
		h = http.Header{}
	}
	return &http.Response{StatusCode: status, Header: h, Body: io.NopCloser(bytes.NewReader(body)), ContentLength: int64(len(body))}
}

// decodeChunked unwraps a single-chunk aws-chunked payload: <hex>\r\n<body>\r\n0\r\n...
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	sizeField := strings.SplitN(parts[0], ";", 2)[0]
	size, err := strconv.ParseInt(sizeField, 16, 64)
	if err != nil || int64(len(parts[1])) != size || !strings.HasPrefix(parts[2], "0") {
		return nil, false
	}
	return []byte(parts[1]), true
}
