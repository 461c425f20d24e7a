package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/ncmb/apierr"
)

// Response is the classified outcome of a successful API call.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       map[string]any
	Raw        []byte
}

// ObjectID returns the objectId field of the body, if any.
func (r *Response) ObjectID() string {
	if r == nil {
		return ""
	}
	if id, ok := r.Body["objectId"].(string); ok {
		return id
	}
	return ""
}

// String extracts a string field from the body.
func (r *Response) String(key string) string {
	if r == nil {
		return ""
	}
	if v, ok := r.Body[key].(string); ok {
		return v
	}
	return ""
}

// Classify maps a raw transport response to a Response or a typed
// error. 200 and 201 are the only success statuses. A JSON body is
// parsed (empty body counts as an empty object); an unparsable body on
// a success status is a parse failure, not a success with no data.
func Classify(statusCode int, headers http.Header, body []byte) (*Response, error) {
	parsed, parseErr := parseBody(headers.Get("Content-Type"), body)

	if statusCode == http.StatusOK || statusCode == http.StatusCreated {
		if parseErr != nil {
			return nil, apierr.Wrap(apierr.CodeInvalidJSON, "invalid json response", parseErr)
		}
		return &Response{
			StatusCode: statusCode,
			Headers:    headers,
			Body:       parsed,
			Raw:        body,
		}, nil
	}

	if parseErr != nil {
		return nil, apierr.Wrap(apierr.CodeGeneric,
			fmt.Sprintf("unexpected status %d", statusCode), parseErr)
	}

	code, _ := parsed["code"].(string)
	message, _ := parsed["error"].(string)
	if code == "" {
		return nil, apierr.New(apierr.CodeGeneric,
			fmt.Sprintf("unexpected status %d", statusCode))
	}
	return nil, apierr.New(code, message)
}

// parseBody decodes a JSON body. Non-JSON content types pass through as
// an empty object with the raw bytes preserved on the Response.
func parseBody(contentType string, body []byte) (map[string]any, error) {
	if !isJSON(contentType) || len(body) == 0 {
		return map[string]any{}, nil
	}
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

// isJSON accepts application/json with or without a charset suffix.
// A missing content type on an error response is still worth a parse
// attempt, the backend always answers JSON.
func isJSON(contentType string) bool {
	if contentType == "" {
		return true
	}
	return strings.HasPrefix(strings.ToLower(contentType), "application/json")
}
