// Package netref looks up referents that live behind an HTTP service
// rather than in the database, such as dealers owned by another system.
//
// A Finder implements poly.Finder, so it can back a net relationship:
//
//	dealers, _ := netref.New[Dealer]("https://dealers.internal/v1/dealers")
//	poly.NewNetRelationship[Vehicle, *Dealer](vehicles, "source", dealers)
package netref

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mickamy/polyorm/orm"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultConcurrency = 8
	// maxErrorBodySize limits how much of an error response is kept.
	maxErrorBodySize = 4096
)

// StatusError is returned for responses other than 200 and 404.
type StatusError struct {
	URL  string
	Code int
	Body string
}

// Error returns the error string.
func (e *StatusError) Error() string {
	return fmt.Sprintf("netref: GET %s: status %d: %s", e.URL, e.Code, e.Body)
}

// Finder fetches E by id with GET {base}/{id}. Concurrent lookups of the
// same id share one request. Finder is safe for concurrent use.
type Finder[E any] struct {
	base        string
	client      *http.Client
	codec       Codec
	logger      *slog.Logger
	concurrency int

	group singleflight.Group
}

type options struct {
	client      *http.Client
	codec       Codec
	logger      *slog.Logger
	concurrency int
}

// Option configures a Finder.
type Option func(*options)

// WithHTTPClient sets the client used for lookups.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithCodec sets the response codec. The default is JSON.
func WithCodec(c Codec) Option {
	return func(o *options) { o.codec = c }
}

// WithLogger sets the logger for failed lookups.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithConcurrency bounds the parallel requests of FindMany.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// New returns a Finder for the collection at baseURL.
func New[E any](baseURL string, opts ...Option) (*Finder[E], error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("netref: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("netref: base url %q must be http or https", baseURL)
	}

	o := options{
		client:      &http.Client{Timeout: defaultTimeout},
		codec:       JSON,
		logger:      slog.Default(),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
	return &Finder[E]{
		base:        strings.TrimSuffix(u.String(), "/"),
		client:      o.client,
		codec:       o.codec,
		logger:      o.logger,
		concurrency: o.concurrency,
	}, nil
}

// Find fetches the referent with the given id. A 404 yields orm.ErrNotFound.
func (f *Finder[E]) Find(ctx context.Context, id int64) (*E, error) {
	key := strconv.FormatInt(id, 10)
	v, err, _ := f.group.Do(key, func() (any, error) {
		return f.fetch(ctx, key)
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // fetch errors are already wrapped
	}
	return v.(*E), nil //nolint:forcetypeassert // fetch returns *E
}

// FindMany fetches every id, at most WithConcurrency at a time, and returns
// the referents in the order of ids. The first failure cancels the rest.
func (f *Finder[E]) FindMany(ctx context.Context, ids []int64) ([]*E, error) {
	out := make([]*E, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			e, err := f.Find(ctx, id)
			if err != nil {
				return err
			}
			out[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // Find errors are already wrapped
	}
	return out, nil
}

func (f *Finder[E]) fetch(ctx context.Context, key string) (*E, error) {
	target := f.base + "/" + key
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("netref: build request: %w", err)
	}
	req.Header.Set("Accept", f.codec.ContentType())

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("referent lookup failed", slog.String("url", target), slog.Any("error", err))
		return nil, fmt.Errorf("netref: GET %s: %w", target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("netref: GET %s: %w", target, orm.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		f.logger.Warn("referent lookup failed",
			slog.String("url", target),
			slog.Int("status", resp.StatusCode),
		)
		return nil, &StatusError{URL: target, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	e := new(E)
	if err := f.codec.Decode(resp.Body, e); err != nil {
		return nil, fmt.Errorf("netref: decode %s: %w", target, err)
	}
	return e, nil
}
