package http //nolint:revive // intentional naming for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strconv"
	"strings"

	"github.com/meigma/zsdb/core/internal/dbtype"
	"github.com/meigma/zsdb/core/internal/layout"
)

var (
	errRangeUnsupported = errors.New("server ignores range requests")
	errArchiveChanged   = errors.New("archive changed on the server")
)

// Source reads an archive with HTTP range requests.
// It satisfies zsdb.ByteSource (io.ReaderAt plus Size), so an archive served
// by any static file server that honors Range can be opened with zsdb.New.
//
// NewSource fetches the archive header together with the size and cache
// validators in a single request, and reads inside the header are served
// from memory. Every later response must carry exactly the requested range
// of a resource of the size seen at open; anything else means the archive changed
// or the server misbehaves, and the read fails with ErrIO.
type Source struct {
	url         string
	ctx         context.Context
	client      *nethttp.Client
	headers     nethttp.Header
	conditional bool

	size         int64
	head         []byte
	etag         string
	lastModified string
}

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithHeaders sets additional headers on each request.
func WithHeaders(headers nethttp.Header) Option {
	return func(s *Source) {
		if headers == nil {
			return
		}
		s.headers = headers.Clone()
	}
}

// WithHeader sets a single header on each request.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(nethttp.Header)
		}
		s.headers.Set(key, value)
	}
}

// WithContext sets the context attached to every request. Cancelling it
// fails all later reads. The default is context.Background().
func WithContext(ctx context.Context) Option {
	return func(s *Source) {
		s.ctx = ctx
	}
}

// WithConditionalHeaders sends the ETag (If-Match) or Last-Modified
// (If-Unmodified-Since) seen at open with every range read, so a replaced
// archive fails with 412 instead of mixing bytes of two versions. Disabled
// by default because some servers reject conditional range requests.
func WithConditionalHeaders() Option {
	return func(s *Source) {
		s.conditional = true
	}
}

// NewSource fetches the archive header from url and returns a Source over
// it. Failures wrap ErrOpen.
func NewSource(url string, opts ...Option) (*Source, error) {
	s := &Source{
		url:    url,
		ctx:    context.Background(),
		client: nethttp.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = nethttp.DefaultClient
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}

	if err := s.fetchHeader(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", dbtype.ErrOpen, url, err)
	}
	return s, nil
}

// Size returns the total size of the remote archive.
func (s *Source) Size() int64 {
	return s.size
}

// SourceID identifies the remote content for block caches. It combines
// the URL with the strongest validator the server reported.
func (s *Source) SourceID() string {
	switch {
	case s.etag != "":
		return s.url + "@etag:" + s.etag
	case s.lastModified != "":
		return s.url + "@modified:" + s.lastModified + ":" + strconv.FormatInt(s.size, 10)
	default:
		return s.url + "@size:" + strconv.FormatInt(s.size, 10)
	}
}

// URL returns the URL the source reads from.
func (s *Source) URL() string {
	return s.url
}

// ReadAt implements io.ReaderAt. If fewer bytes are available than
// requested, it returns the number of bytes read along with io.EOF.
// Transport and protocol failures wrap ErrIO.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("%w: read at %d: negative offset", dbtype.ErrIO, off)
	}
	if off >= s.size {
		return 0, io.EOF
	}
	want := min(int64(len(p)), s.size-off)

	var n int
	if off+want <= int64(len(s.head)) {
		n = copy(p, s.head[off:off+want])
	} else {
		var err error
		n, err = s.fetch(p[:want], off)
		if err != nil {
			return n, fmt.Errorf("%w: read %d bytes at %d: %w", dbtype.ErrIO, want, off, err)
		}
	}
	if want < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

// fetchHeader requests the header range. The response gives the size, the
// validators and the header bytes. Only an empty resource may answer
// without a partial response.
func (s *Source) fetchHeader() error {
	resp, err := s.get(0, layout.HeaderSize-1, false)
	if err != nil {
		return err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
		start, end, size, err := parseContentRange(resp.Header.Get("Content-Range"))
		if err != nil {
			return err
		}
		if start != 0 || end >= layout.HeaderSize {
			return fmt.Errorf("header request returned range %d-%d, want 0-%d", start, end, layout.HeaderSize-1)
		}
		head := make([]byte, end+1)
		if _, err := io.ReadFull(resp.Body, head); err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		s.size, s.head = size, head
	case nethttp.StatusRequestedRangeNotSatisfiable:
		size, err := parseUnsatisfiedRange(resp.Header.Get("Content-Range"))
		if err != nil {
			return err
		}
		if size != 0 {
			return fmt.Errorf("server cannot serve the header of a %d byte resource", size)
		}
		s.size = 0
	case nethttp.StatusOK:
		// Servers answer a ranged request for an empty resource either way.
		if resp.ContentLength != 0 {
			return errRangeUnsupported
		}
		s.size = 0
	default:
		return fmt.Errorf("header request: %s", resp.Status)
	}
	s.etag = resp.Header.Get("ETag")
	s.lastModified = resp.Header.Get("Last-Modified")
	return nil
}

// fetch fills p from the remote range starting at off. p lies within the
// resource.
func (s *Source) fetch(p []byte, off int64) (int, error) {
	end := off + int64(len(p)) - 1
	resp, err := s.get(off, end, s.conditional)
	if err != nil {
		return 0, err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
	case nethttp.StatusPreconditionFailed:
		return 0, errArchiveChanged
	case nethttp.StatusOK:
		return 0, errRangeUnsupported
	default:
		return 0, fmt.Errorf("range request: %s", resp.Status)
	}

	start, last, size, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return 0, err
	}
	if size != s.size {
		return 0, fmt.Errorf("%w: size %d, opened at %d", errArchiveChanged, size, s.size)
	}
	if start != off || last != end {
		return 0, fmt.Errorf("server returned range %d-%d, want %d-%d", start, last, off, end)
	}
	return io.ReadFull(resp.Body, p)
}

// get issues a ranged GET for bytes off through end.
func (s *Source) get(off, end int64, conditional bool) (*nethttp.Response, error) {
	req, err := nethttp.NewRequestWithContext(s.ctx, nethttp.MethodGet, s.url, nethttp.NoBody)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, end))
	if conditional {
		switch {
		case s.etag != "":
			req.Header.Set("If-Match", s.etag)
		case s.lastModified != "":
			req.Header.Set("If-Unmodified-Since", s.lastModified)
		}
	}
	return s.client.Do(req)
}

// drain discards what is left of a response body so the connection can be
// reused.
func drain(resp *nethttp.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10)) //nolint:errcheck // best-effort drain for connection reuse
	_ = resp.Body.Close()
}

// parseContentRange parses "bytes start-end/size".
func parseContentRange(value string) (start, end, size int64, err error) {
	invalid := fmt.Errorf("invalid Content-Range %q", value)
	spec, ok := strings.CutPrefix(strings.TrimSpace(value), "bytes ")
	if !ok {
		return 0, 0, 0, invalid
	}
	span, total, ok := strings.Cut(spec, "/")
	if !ok {
		return 0, 0, 0, invalid
	}
	first, last, ok := strings.Cut(span, "-")
	if !ok {
		return 0, 0, 0, invalid
	}
	if start, err = strconv.ParseInt(first, 10, 64); err != nil {
		return 0, 0, 0, invalid
	}
	if end, err = strconv.ParseInt(last, 10, 64); err != nil {
		return 0, 0, 0, invalid
	}
	if size, err = strconv.ParseInt(total, 10, 64); err != nil {
		return 0, 0, 0, invalid
	}
	if start < 0 || end < start || end >= size {
		return 0, 0, 0, invalid
	}
	return start, end, size, nil
}

// parseUnsatisfiedRange parses the "bytes */size" form sent with 416.
func parseUnsatisfiedRange(value string) (int64, error) {
	total, ok := strings.CutPrefix(strings.TrimSpace(value), "bytes */")
	if !ok {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	return size, nil
}
