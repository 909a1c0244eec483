package http_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	zsdb "github.com/meigma/zsdb/core"
	zsdbhttp "github.com/meigma/zsdb/core/http"
	"github.com/meigma/zsdb/core/testutil"
)

func TestSource_ReadAt(t *testing.T) {
	t.Parallel()

	data := testutil.RandomBytes(7, 300)
	var gets int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		atomic.AddInt32(&gets, 1)
		nethttp.ServeContent(w, r, "data", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	src, err := zsdbhttp.NewSource(server.URL, zsdbhttp.WithConditionalHeaders())
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	if src.Size() != int64(len(data)) {
		t.Fatalf("Size() = %d, want %d", src.Size(), len(data))
	}
	if n := atomic.LoadInt32(&gets); n != 1 {
		t.Fatalf("NewSource() issued %d requests, want 1", n)
	}

	buf := make([]byte, 20)
	if _, err := src.ReadAt(buf, 10); err != nil {
		t.Fatalf("ReadAt(10) error = %v", err)
	}
	if !bytes.Equal(buf, data[10:30]) {
		t.Fatal("ReadAt(10) returned wrong bytes")
	}
	if n := atomic.LoadInt32(&gets); n != 1 {
		t.Fatalf("header read issued %d requests, want none after open", n-1)
	}

	tests := []struct {
		name    string
		bufSize int
		offset  int64
		wantN   int
		wantErr error
	}{
		{
			name:    "read across end of header",
			bufSize: 40,
			offset:  70,
			wantN:   40,
			wantErr: nil,
		},
		{
			name:    "read after header",
			bufSize: 50,
			offset:  200,
			wantN:   50,
			wantErr: nil,
		},
		{
			name:    "read past end returns EOF",
			bufSize: 20,
			offset:  int64(len(data) - 10),
			wantN:   10,
			wantErr: io.EOF,
		},
		{
			name:    "read at end returns EOF",
			bufSize: 5,
			offset:  int64(len(data)),
			wantN:   0,
			wantErr: io.EOF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			buf := make([]byte, tt.bufSize)
			n, err := src.ReadAt(buf, tt.offset)
			if err != tt.wantErr {
				t.Fatalf("ReadAt() error = %v, want %v", err, tt.wantErr)
			}
			if n != tt.wantN {
				t.Fatalf("ReadAt() n = %d, want %d", n, tt.wantN)
			}
			if !bytes.Equal(buf[:n], data[tt.offset:tt.offset+int64(n)]) {
				t.Fatalf("ReadAt() returned wrong bytes at %d", tt.offset)
			}
		})
	}
}

func TestSource_EmptyResource(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		nethttp.ServeContent(w, r, "empty", time.Time{}, bytes.NewReader(nil))
	}))
	t.Cleanup(server.Close)

	src, err := zsdbhttp.NewSource(server.URL)
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	if src.Size() != 0 {
		t.Fatalf("Size() = %d, want 0", src.Size())
	}
	n, err := src.ReadAt(make([]byte, 4), 0)
	if n != 0 || err != io.EOF {
		t.Fatalf("ReadAt() = %d, %v, want 0, EOF", n, err)
	}
}

func TestNewSource_RangeUnsupported(t *testing.T) {
	t.Parallel()

	data := []byte("range unsupported")
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		_, _ = w.Write(data)
	}))
	t.Cleanup(server.Close)

	_, err := zsdbhttp.NewSource(server.URL)
	if !errors.Is(err, zsdb.ErrOpen) {
		t.Fatalf("NewSource() error = %v, want ErrOpen", err)
	}
}

func TestNewSource_ServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		nethttp.Error(w, "gone", nethttp.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	_, err := zsdbhttp.NewSource(server.URL)
	if !errors.Is(err, zsdb.ErrOpen) {
		t.Fatalf("NewSource() error = %v, want ErrOpen", err)
	}
}

func TestSource_ReadAt_ArchiveReplaced(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []zsdbhttp.Option
	}{
		{name: "etag mismatch fails with 412", opts: []zsdbhttp.Option{zsdbhttp.WithConditionalHeaders()}},
		{name: "size mismatch without conditional headers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var current atomic.Pointer[[]byte]
			var etag atomic.Value
			first := testutil.RandomBytes(11, 300)
			current.Store(&first)
			etag.Store(`"v1"`)
			server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
				w.Header().Set("ETag", etag.Load().(string))
				nethttp.ServeContent(w, r, "data", time.Time{}, bytes.NewReader(*current.Load()))
			}))
			t.Cleanup(server.Close)

			src, err := zsdbhttp.NewSource(server.URL, tt.opts...)
			if err != nil {
				t.Fatalf("NewSource() error = %v", err)
			}

			second := testutil.RandomBytes(12, 400)
			current.Store(&second)
			etag.Store(`"v2"`)

			n, err := src.ReadAt(make([]byte, 10), 100)
			if !errors.Is(err, zsdb.ErrIO) {
				t.Fatalf("ReadAt() error = %v, want ErrIO", err)
			}
			if n != 0 {
				t.Fatalf("ReadAt() n = %d, want 0", n)
			}
		})
	}
}

func TestSource_ReadAt_RejectsWrongRange(t *testing.T) {
	t.Parallel()

	data := testutil.RandomBytes(13, 300)
	tests := []struct {
		name  string
		reply func(w nethttp.ResponseWriter)
	}{
		{
			name: "shifted range",
			reply: func(w nethttp.ResponseWriter) {
				w.Header().Set("Content-Range", "bytes 0-9/300")
				w.WriteHeader(nethttp.StatusPartialContent)
				_, _ = w.Write(data[:10])
			},
		},
		{
			name: "full body",
			reply: func(w nethttp.ResponseWriter) {
				w.WriteHeader(nethttp.StatusOK)
				_, _ = w.Write(data)
			},
		},
		{
			name: "malformed content range",
			reply: func(w nethttp.ResponseWriter) {
				w.Header().Set("Content-Range", "items 100-109")
				w.WriteHeader(nethttp.StatusPartialContent)
				_, _ = w.Write(data[100:110])
			},
		},
		{
			name: "short body",
			reply: func(w nethttp.ResponseWriter) {
				w.Header().Set("Content-Range", "bytes 100-109/300")
				w.WriteHeader(nethttp.StatusPartialContent)
				_, _ = w.Write(data[100:104])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
				if r.Header.Get("Range") == "bytes=0-79" {
					nethttp.ServeContent(w, r, "data", time.Time{}, bytes.NewReader(data))
					return
				}
				tt.reply(w)
			}))
			t.Cleanup(server.Close)

			src, err := zsdbhttp.NewSource(server.URL)
			if err != nil {
				t.Fatalf("NewSource() error = %v", err)
			}
			if _, err := src.ReadAt(make([]byte, 10), 100); !errors.Is(err, zsdb.ErrIO) {
				t.Fatalf("ReadAt() error = %v, want ErrIO", err)
			}
		})
	}
}

func TestSource_OpensArchive(t *testing.T) {
	t.Parallel()

	src := testutil.WriteFiles(t, map[string][]byte{
		"map001.bin": bytes.Repeat([]byte("tile"), 512),
		"npc.json":   []byte(`{"name":"guard","hp":120}`),
		"empty.dat":  nil,
	})
	archivePath := filepath.Join(t.TempDir(), "assets.zsdb")
	if _, err := zsdb.Build(context.Background(), archivePath, src); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	data, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	var gets int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method == nethttp.MethodGet {
			atomic.AddInt32(&gets, 1)
		}
		nethttp.ServeContent(w, r, "assets.zsdb", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	source, err := zsdbhttp.NewSource(server.URL)
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	r, err := zsdb.New(source)
	if err != nil {
		t.Fatalf("zsdb.New() error = %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })

	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
	got, ok := r.Lookup("map001.bin")
	if !ok || !bytes.Equal(got, bytes.Repeat([]byte("tile"), 512)) {
		t.Fatalf("Lookup(map001.bin) = %d bytes, ok=%v", len(got), ok)
	}
	name, got, ok := r.LookupPrefix("npc", 3)
	if !ok || name != "npc.json" || string(got) != `{"name":"guard","hp":120}` {
		t.Fatalf("LookupPrefix(npc) = %q, %q, %v", name, got, ok)
	}

	before := atomic.LoadInt32(&gets)
	got, ok = r.Lookup("empty.dat")
	if !ok || len(got) != 0 {
		t.Fatalf("Lookup(empty.dat) = %q, %v", got, ok)
	}
	if after := atomic.LoadInt32(&gets); after != before {
		t.Fatalf("empty entry issued %d range requests", after-before)
	}
}

func TestSource_HeadersAndContext(t *testing.T) {
	t.Parallel()

	data := testutil.RandomBytes(17, 300)
	var missingHeader int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			atomic.AddInt32(&missingHeader, 1)
		}
		nethttp.ServeContent(w, r, "data", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	src, err := zsdbhttp.NewSource(server.URL,
		zsdbhttp.WithHeader("Authorization", "Bearer token"),
		zsdbhttp.WithContext(ctx),
		zsdbhttp.WithClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	if src.URL() != server.URL {
		t.Fatalf("URL() = %q, want %q", src.URL(), server.URL)
	}

	buf := make([]byte, 5)
	if _, err := src.ReadAt(buf, 100); err != nil {
		t.Fatalf("ReadAt() error = %v", err)
	}
	if atomic.LoadInt32(&missingHeader) != 0 {
		t.Fatalf("%d requests without the configured header", missingHeader)
	}

	cancel()
	_, err = src.ReadAt(buf, 200)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ReadAt() after cancel error = %v, want context.Canceled", err)
	}
	if !errors.Is(err, zsdb.ErrIO) {
		t.Fatalf("ReadAt() after cancel error = %v, want ErrIO", err)
	}
	if _, err := src.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt() of header after cancel error = %v", err)
	}
}

func TestSource_SourceID(t *testing.T) {
	t.Parallel()

	data := []byte("archive bytes")
	etag := atomic.Value{}
	etag.Store(`"v1"`)
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if v := etag.Load().(string); v != "" {
			w.Header().Set("ETag", v)
		}
		nethttp.ServeContent(w, r, "data", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	first, err := zsdbhttp.NewSource(server.URL + "/a.zsdb")
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	again, err := zsdbhttp.NewSource(server.URL + "/a.zsdb")
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	if first.SourceID() != again.SourceID() {
		t.Fatalf("SourceID() not stable: %q vs %q", first.SourceID(), again.SourceID())
	}

	etag.Store(`"v2"`)
	changed, err := zsdbhttp.NewSource(server.URL + "/a.zsdb")
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	if changed.SourceID() == first.SourceID() {
		t.Fatalf("SourceID() = %q after ETag change, want a new id", changed.SourceID())
	}

	etag.Store("")
	bare, err := zsdbhttp.NewSource(server.URL + "/a.zsdb")
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	want := server.URL + "/a.zsdb@size:" + strconv.Itoa(len(data))
	if bare.SourceID() != want {
		t.Fatalf("SourceID() = %q, want %q", bare.SourceID(), want)
	}
}
