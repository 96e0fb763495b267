package objectstore

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-persist/pkg/storage/storagetest"
	"github.com/stretchr/testify/require"
)

// fakeBucket answers the subset of the S3 API used by Store.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	name := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		data, err := readBody(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.objects[name] = data
		b.types[name] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		data, ok := b.objects[name]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>%s</Key></Error>`, name)
			}
			return
		}
		w.Header().Set("ETag", `"etag"`)
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", b.types[name])
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(data)
		}
	case http.MethodDelete:
		delete(b.objects, name)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// readBody strips aws-chunked framing when the client used a streaming
// signature.
func readBody(r *http.Request) ([]byte, error) {
	if !strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") {
		return io.ReadAll(r.Body)
	}
	reader := bufio.NewReader(r.Body)
	var out []byte
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		sizeHex, _, _ := strings.Cut(strings.TrimSpace(line), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return out, nil
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(reader, chunk); err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		if _, err := reader.Discard(2); err != nil {
			return nil, err
		}
	}
}

func newFakeStore(t *testing.T, prefix string) (*Store, *fakeBucket) {
	t.Helper()
	bucket := &fakeBucket{objects: map[string][]byte{}, types: map[string]string{}}
	server := httptest.NewServer(bucket)
	t.Cleanup(server.Close)

	endpoint, err := url.Parse(server.URL)
	require.NoError(t, err)
	s, err := New(context.Background(), Config{
		Endpoint: endpoint.Host,
		Access:   "access",
		Secret:   "secret",
		Bucket:   "records",
		Region:   "us-east-1",
		Prefix:   prefix,
	})
	require.NoError(t, err)
	return s, bucket
}

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storagetest.Storage {
		s, _ := newFakeStore(t, "")
		return s
	})
}

func TestConfigValidateListsMissingFields(t *testing.T) {
	err := Config{Endpoint: "s3.local", Secret: "x"}.Validate()
	require.EqualError(t, err, "objectstore: missing config fields: access, bucket")

	require.NoError(t, Config{Endpoint: "e", Access: "a", Secret: "s", Bucket: "b"}.Validate())
}

func TestObjectName(t *testing.T) {
	cases := []struct {
		prefix, key, want string
	}{
		{"", "cart", "cart.json"},
		{"persist/", "cart", "persist/cart.json"},
		{"/persist", "/cart/items", "persist/cart/items.json"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, objectName(tc.prefix, tc.key))
	}
}

func TestSetWritesJSONObjectUnderPrefix(t *testing.T) {
	s, bucket := newFakeStore(t, "persist")
	require.NoError(t, s.Set(context.Background(), "cart", []byte(`{"a":1}`)))

	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	require.Equal(t, `{"a":1}`, string(bucket.objects["records/persist/cart.json"]))
	require.Equal(t, "application/json", bucket.types["records/persist/cart.json"])
}

func TestDelete(t *testing.T) {
	s, _ := newFakeStore(t, "")
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "cart", []byte(`1`)))
	require.NoError(t, s.Delete(ctx, "cart"))

	_, ok, err := s.Get(ctx, "cart")
	require.NoError(t, err)
	require.False(t, ok)
}
