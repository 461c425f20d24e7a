package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

const (
	signatureMethodKey   = "SignatureMethod"
	signatureMethodValue = "HmacSHA256"

	signatureVersionKey   = "SignatureVersion"
	signatureVersionValue = "2"

	applicationKeyName = "X-NCMB-Application-Key"
	timestampKeyName   = "X-NCMB-Timestamp"
)

// Params describes one request to be signed. Query holds raw
// (unencoded) query parameter values; they are percent-encoded here
// before sorting, which cannot change key order.
type Params struct {
	Method         string
	FQDN           string
	Path           string
	Timestamp      string
	ApplicationKey string
	ClientKey      string
	Query          map[string]string
}

// Generate computes the request signature: the signed parameter list is
// sorted by name, joined as key=value pairs with "&", stacked under the
// uppercased method, host and path, then HMAC-SHA256'd with the client
// key and base64-encoded. Identical inputs always produce identical
// output.
func Generate(p Params) string {
	pairs := [][2]string{
		{signatureMethodKey, signatureMethodValue},
		{signatureVersionKey, signatureVersionValue},
		{applicationKeyName, p.ApplicationKey},
		{timestampKeyName, p.Timestamp},
	}
	for k, v := range p.Query {
		pairs = append(pairs, [2]string{k, encode(v)})
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })

	joined := make([]string, 0, len(pairs))
	for _, kv := range pairs {
		joined = append(joined, kv[0]+"="+kv[1])
	}

	stringToSign := strings.Join([]string{
		strings.ToUpper(p.Method),
		p.FQDN,
		p.Path,
		strings.Join(joined, "&"),
	}, "\n")

	mac := hmac.New(sha256.New, []byte(p.ClientKey))
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// encode percent-encodes a query value. Spaces must become %20, not +,
// or the backend recomputes a different signature.
func encode(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}
