package request

import (
	"encoding/json"
	"fmt"
	"net/url"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/session"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/signature"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/types"
)

// Header names on the wire.
const (
	HeaderContentType    = "Content-Type"
	HeaderApplicationKey = "X-NCMB-Application-Key"
	HeaderTimestamp      = "X-NCMB-Timestamp"
	HeaderSignature      = "X-NCMB-Signature"
	HeaderSessionToken   = "X-NCMB-Apps-Session-Token"
	HeaderSDKVersion     = "X-NCMB-SDK-Version"
	HeaderOSVersion      = "X-NCMB-OS-Version"
	HeaderRequestID      = "X-NCMB-Request-Id"
)

const (
	defaultContentType = "application/json"

	// Fixed client identification sent with every request.
	sdkVersion = "ncmb-go/1.0.0"
)

// Request is the canonical description of one API call. The timestamp
// is fixed at construction and reused for both the signature and the
// transmitted header; recomputing it later would invalidate the
// signature.
type Request struct {
	URL         string
	Method      string
	Body        map[string]any
	Query       map[string]string
	ContentType string
	Timestamp   string
	ID          string
}

// New builds a canonical request. Body and query may be nil.
func New(method, rawURL string, body map[string]any, query map[string]string) *Request {
	return &Request{
		URL:         rawURL,
		Method:      method,
		Body:        body,
		Query:       query,
		ContentType: defaultContentType,
		Timestamp:   types.FormatTimestamp(time.Now()),
		ID:          uuid.NewString(),
	}
}

// SignedHeaders produces the outgoing header set for this request under
// the given session. The session token header is present only while a
// token is set. Empty credentials are not validated here; the backend
// rejects them.
func (r *Request) SignedHeaders(sess *session.Session) (map[string]string, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, fmt.Errorf("parse request url: %w", err)
	}

	sig := signature.Generate(signature.Params{
		Method:         r.Method,
		FQDN:           u.Hostname(),
		Path:           u.Path,
		Timestamp:      r.Timestamp,
		ApplicationKey: sess.ApplicationKey(),
		ClientKey:      sess.ClientKey(),
		Query:          r.Query,
	})

	headers := map[string]string{
		HeaderContentType:    r.contentType(),
		HeaderApplicationKey: sess.ApplicationKey(),
		HeaderTimestamp:      r.Timestamp,
		HeaderSignature:      sig,
		HeaderSDKVersion:     sdkVersion,
		HeaderOSVersion:      runtime.GOOS,
		HeaderRequestID:      r.ID,
	}
	if token := sess.SessionToken(); token != "" {
		headers[HeaderSessionToken] = token
	}
	return headers, nil
}

// BodyBytes serializes the body, nil for a bodyless request.
func (r *Request) BodyBytes() ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := json.Marshal(r.Body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	return data, nil
}

// FullURL returns the URL with query parameters attached.
func (r *Request) FullURL() string {
	if len(r.Query) == 0 {
		return r.URL
	}
	values := url.Values{}
	for k, v := range r.Query {
		values.Set(k, v)
	}
	return r.URL + "?" + values.Encode()
}

func (r *Request) contentType() string {
	if r.ContentType == "" {
		return defaultContentType
	}
	return r.ContentType
}
