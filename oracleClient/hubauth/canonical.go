// Package hubauth implements the signed-request scheme used between oracle
// nodes and hubs.
//
// Every request carries six headers. The signature covers the canonical string
//
//	METHOD\nURL\nhubId=<id>\ntimestamp=<unix>\nnonce=<nonce>\nbodyhash=<hex>\n
//
// where URL is the request URI (path plus raw query).
package hubauth

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

const (
	HeaderHubID      = "X-Hub-Id"
	HeaderKid        = "X-Hub-Kid"
	HeaderTimestamp  = "X-Hub-Timestamp"
	HeaderNonce      = "X-Hub-Nonce"
	HeaderBodySHA256 = "X-Hub-Body-Sha256"
	HeaderSignature  = "X-Hub-Signature"
)

var (
	idPattern        = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,64}$`)
	timestampPattern = regexp.MustCompile(`^[0-9]{1,12}$`)
	noncePattern     = regexp.MustCompile(`^[A-Za-z0-9._~-]{8,128}$`)
	bodyHashPattern  = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
	signaturePattern = regexp.MustCompile(`^[A-Za-z0-9+/]{86}==$`)
)

// Headers is the parsed auth header set of one request.
type Headers struct {
	HubID     string
	Kid       string
	Timestamp string
	Nonce     string
	BodyHash  string
	Signature string
}

// CanonicalString builds the exact byte sequence a request signature covers.
// Header values are used exactly as sent.
func CanonicalString(method, uri string, h Headers) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte('\n')
	b.WriteString(uri)
	b.WriteByte('\n')
	b.WriteString("hubId=" + h.HubID + "\n")
	b.WriteString("timestamp=" + h.Timestamp + "\n")
	b.WriteString("nonce=" + h.Nonce + "\n")
	b.WriteString("bodyhash=" + h.BodyHash + "\n")
	return b.String()
}

// BodyHash returns the lowercase hex SHA-256 of body. An empty body hashes
// like any other input.
func BodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
