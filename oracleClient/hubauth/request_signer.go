package hubauth

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// RequestSigner adds auth headers to this node's outbound hub requests, using
// the same canonical string the Verifier checks.
type RequestSigner struct {
	id    string
	kid   string
	key   solana.PrivateKey
	now   func() time.Time
	nonce func() string
}

// NewRequestSigner creates a signer presenting id and kid.
func NewRequestSigner(id, kid string, key solana.PrivateKey) (*RequestSigner, error) {
	if !idPattern.MatchString(id) {
		return nil, fmt.Errorf("invalid signer id %q", id)
	}
	if !idPattern.MatchString(kid) {
		return nil, fmt.Errorf("invalid signer kid %q", kid)
	}
	if len(key) != 64 {
		return nil, fmt.Errorf("signing key must be 64 bytes, got %d", len(key))
	}
	return &RequestSigner{
		id:    id,
		kid:   kid,
		key:   key,
		now:   time.Now,
		nonce: func() string { return uuid.NewString() },
	}, nil
}

// Sign sets the auth headers on req. The body, if any, is read and replaced.
func (s *RequestSigner) Sign(req *http.Request) error {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return fmt.Errorf("failed to read request body: %w", err)
		}
		_ = req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	h := Headers{
		HubID:     s.id,
		Kid:       s.kid,
		Timestamp: strconv.FormatInt(s.now().Unix(), 10),
		Nonce:     s.nonce(),
		BodyHash:  BodyHash(body),
	}
	sig, err := s.key.Sign([]byte(CanonicalString(req.Method, req.URL.RequestURI(), h)))
	if err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}
	h.Signature = base64.StdEncoding.EncodeToString(sig[:])

	req.Header.Set(HeaderHubID, h.HubID)
	req.Header.Set(HeaderKid, h.Kid)
	req.Header.Set(HeaderTimestamp, h.Timestamp)
	req.Header.Set(HeaderNonce, h.Nonce)
	req.Header.Set(HeaderBodySHA256, h.BodyHash)
	req.Header.Set(HeaderSignature, h.Signature)
	return nil
}
