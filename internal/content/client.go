package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	apperrors "github.com/webitel/rocrate-exporter/internal/errors"
	"github.com/webitel/rocrate-exporter/internal/model"
	"github.com/webitel/rocrate-exporter/internal/rocrate"
)

const (
	acceptJSON   = "application/json"
	acceptLDJSON = "application/ld+json"
	acceptAny    = "*/*"

	maxErrorBody = 1 << 10
)

// Client talks to the remote content service. It never retries.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient builds a client for the service rooted at baseURL. The path of baseURL
// is kept as a prefix of every endpoint.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse content base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("content base url %q must be absolute", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""

	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = timeout
	return &Client{base: u, http: hc}, nil
}

// NewClientWithHTTP is NewClient with a caller supplied transport.
func NewClientWithHTTP(baseURL string, hc *http.Client) (*Client, error) {
	c, err := NewClient(baseURL, 0)
	if err != nil {
		return nil, err
	}
	c.http = hc
	return c, nil
}

func (c *Client) endpoint(segments ...string) string {
	u := *c.base
	var b strings.Builder
	b.WriteString(u.Path)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	u.RawPath = b.String()
	u.Path, _ = url.PathUnescape(u.RawPath)
	return u.String()
}

func (c *Client) do(ctx context.Context, op, target, token, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", accept)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &apperrors.RemoteFetchError{Op: op, Status: resp.StatusCode, Body: string(body)}
	}
	if resp.StatusCode == http.StatusNoContent {
		resp.Body.Close()
		return nil, &apperrors.RemoteFetchError{Op: op, Status: resp.StatusCode, Body: "response has no body"}
	}
	return resp, nil
}

// GetEntityMetadata reads the entity record, used for its memberOf reference.
func (c *Client) GetEntityMetadata(ctx context.Context, entityID, token string) (*model.Entity, error) {
	resp, err := c.do(ctx, "get entity metadata", c.endpoint("entity", entityID), token, acceptJSON)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var e model.Entity
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		return nil, &apperrors.RemoteFetchError{Op: "get entity metadata", Body: err.Error()}
	}
	return &e, nil
}

// GetEntityProvenance reads the RO-Crate document of an entity.
func (c *Client) GetEntityProvenance(ctx context.Context, entityID, token string) (rocrate.Crate, error) {
	resp, err := c.do(ctx, "get ro-crate metadata", c.endpoint("entity", entityID, "rocrate"), token, acceptLDJSON)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("get ro-crate metadata: %w", err)
	}
	crate, err := rocrate.Parse(data)
	if err != nil {
		return nil, &apperrors.RemoteFetchError{Op: "get ro-crate metadata", Body: err.Error()}
	}
	return crate, nil
}

// OpenFile starts the download of a file and returns its body.
func (c *Client) OpenFile(ctx context.Context, fileID, token string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, "download file", c.endpoint("file", fileID), token, acceptAny)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// OpenFileStream returns a stream that only connects on its first Read.
func (c *Client) OpenFileStream(ctx context.Context, fileID, token string) io.ReadCloser {
	return &lazyStream{open: func() (io.ReadCloser, error) {
		return c.OpenFile(ctx, fileID, token)
	}}
}

type lazyStream struct {
	open func() (io.ReadCloser, error)
	body io.ReadCloser
	err  error
}

func (s *lazyStream) Read(p []byte) (int, error) {
	if s.body == nil && s.err == nil {
		s.body, s.err = s.open()
	}
	if s.err != nil {
		return 0, s.err
	}
	return s.body.Read(p)
}

func (s *lazyStream) Close() error {
	if s.body == nil {
		return nil
	}
	return s.body.Close()
}
