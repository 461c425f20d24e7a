package dispatcher

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"golang.org/x/exp/slog"

	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/apierr"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/cache"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/identity"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/request"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/response"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/session"
)

const defaultTimeout = 10 * time.Second

// Transport executes one HTTP exchange. *http.Client satisfies it.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// Dispatcher signs, sends and classifies requests, synchronously or
// asynchronously. An "invalid auth header" failure forces a logout of
// the persisted user identity before the error reaches the caller.
type Dispatcher struct {
	transport Transport
	sess      *session.Session
	ident     *identity.Store
	cache     *cache.Cache
	log       *slog.Logger
	timeout   time.Duration
}

type Option func(*Dispatcher)

// WithTransport replaces the HTTP client, mainly for tests.
func WithTransport(t Transport) Option {
	return func(d *Dispatcher) { d.transport = t }
}

// WithTimeout bounds the network round trip of one call.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// WithCache enables the offline fallback for GET requests.
func WithCache(c *cache.Cache) Option {
	return func(d *Dispatcher) { d.cache = c }
}

func New(sess *session.Session, ident *identity.Store, log *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transport: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		sess:    sess,
		ident:   ident,
		log:     log,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Do executes req and blocks until the transport completes or times
// out. The caller receives either a classified response or a typed
// error, never both.
func (d *Dispatcher) Do(ctx context.Context, req *request.Request) (*response.Response, error) {
	headers, err := req.SignedHeaders(d.sess)
	if err != nil {
		// Fail fast, nothing was sent.
		return nil, apierr.Wrap(apierr.CodeGeneric, "cannot sign request", err)
	}

	body, err := req.BodyBytes()
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeGeneric, "cannot encode request body", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	fullURL := req.FullURL()
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, bodyReader(body))
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeGeneric, "cannot build request", err)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	// Query values can carry credentials (login), log the bare URL only.
	d.log.Debug("sending request",
		"method", req.Method,
		"url", req.URL,
		"requestId", req.ID,
	)

	httpResp, err := d.transport.Do(httpReq)
	if err != nil {
		if resp, ok := d.fromCache(req, fullURL); ok {
			d.log.Info("transport failed, serving cached response",
				"url", req.URL, "error", err)
			return resp, nil
		}
		return nil, apierr.Wrap(apierr.CodeGeneric, "transport failure", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeGeneric, "cannot read response body", err)
	}

	d.log.Debug("received response",
		"status", httpResp.StatusCode,
		"requestId", req.ID,
	)

	resp, err := response.Classify(httpResp.StatusCode, httpResp.Header, raw)
	if err != nil {
		if apierr.HasCode(err, apierr.CodeInvalidAuthHeader) {
			d.forceLogout()
		}
		return nil, err
	}

	d.toCache(req, fullURL, resp)
	return resp, nil
}

// Handler receives the outcome of an asynchronous call, exactly once.
type Handler func(*response.Response, error)

// DoAsync schedules req on its own goroutine and delivers the same
// classification as Do through fn. There is no mid-flight
// cancellation beyond the context; two independent calls are
// unordered.
func (d *Dispatcher) DoAsync(ctx context.Context, req *request.Request, fn Handler) {
	go func() {
		fn(d.Do(ctx, req))
	}()
}

// forceLogout clears the persisted user and the ambient token after
// the backend rejected our authentication header.
func (d *Dispatcher) forceLogout() {
	d.log.Warn("authentication header rejected, clearing session")
	if d.ident == nil {
		d.sess.Clear()
		return
	}
	if err := d.ident.Clear(identity.KindUser); err != nil {
		d.log.Warn("forced logout failed", "error", err)
	}
}

func (d *Dispatcher) fromCache(req *request.Request, fullURL string) (*response.Response, bool) {
	if d.cache == nil || req.Method != http.MethodGet {
		return nil, false
	}
	status, raw, ok, err := d.cache.Get(fullURL)
	if err != nil || !ok {
		return nil, false
	}
	resp, err := response.Classify(status, http.Header{"Content-Type": []string{"application/json"}}, raw)
	if err != nil {
		return nil, false
	}
	return resp, true
}

func (d *Dispatcher) toCache(req *request.Request, fullURL string, resp *response.Response) {
	if d.cache == nil || req.Method != http.MethodGet {
		return
	}
	if err := d.cache.Put(fullURL, resp.StatusCode, resp.Raw); err != nil {
		d.log.Warn("cannot cache response", "url", req.URL, "error", err)
	}
}

func bodyReader(body []byte) io.Reader {
	if body == nil {
		return nil
	}
	return bytes.NewReader(body)
}
