package hubauth

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	oerrors "github.com/pushchain/bridge-oracle/oracleClient/errors"
)

// DefaultSkew is the accepted distance between the claimed timestamp and now.
const DefaultSkew = 60 * time.Second

// Rejection reasons, used as log fields and metric labels.
const (
	ReasonMissingHeader   = "missing_header"
	ReasonMalformedHeader = "malformed_header"
	ReasonSkew            = "timestamp_skew"
	ReasonReplay          = "replay"
	ReasonNonceStore      = "nonce_store"
	ReasonBodyHash        = "body_hash_mismatch"
	ReasonUnknownKey      = "unknown_key"
	ReasonBadSignature    = "bad_signature"
)

// NonceConsumer records a nonce, returning false if it was already recorded.
type NonceConsumer interface {
	Consume(hubID, kid, nonce string, ts int64) (bool, error)
}

// Verifier authenticates hub requests.
type Verifier struct {
	keys   *KeyRing
	nonces NonceConsumer
	skew   time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewVerifier creates a verifier. A zero skew selects DefaultSkew.
func NewVerifier(keys *KeyRing, nonces NonceConsumer, skew time.Duration, logger zerolog.Logger) *Verifier {
	if skew <= 0 {
		skew = DefaultSkew
	}
	return &Verifier{
		keys:   keys,
		nonces: nonces,
		skew:   skew,
		now:    time.Now,
		logger: logger.With().Str("component", "hub_auth").Logger(),
	}
}

// Verify runs every check in order and returns the authenticated hub id.
// Errors are authentication errors carrying a reason tag, except nonce store
// failures which are database errors.
func (v *Verifier) Verify(method, uri string, header http.Header, body []byte) (string, error) {
	h, err := parseHeaders(header)
	if err != nil {
		return "", err
	}

	ts, _ := strconv.ParseInt(h.Timestamp, 10, 64)
	delta := v.now().Unix() - ts
	if delta < 0 {
		delta = -delta
	}
	if delta > int64(v.skew/time.Second) {
		return "", oerrors.NewAuthenticationError(ReasonSkew, nil).WithContext("delta_seconds", delta)
	}

	// The nonce is consumed before the signature is checked. A request that
	// fails later still burns its nonce.
	fresh, err := v.nonces.Consume(h.HubID, h.Kid, h.Nonce, ts)
	if err != nil {
		return "", oerrors.NewDatabaseError("hubauth", "failed to record nonce", err).WithContext("reason", ReasonNonceStore)
	}
	if !fresh {
		return "", oerrors.NewAuthenticationError(ReasonReplay, nil)
	}

	if !strings.EqualFold(BodyHash(body), h.BodyHash) {
		return "", oerrors.NewAuthenticationError(ReasonBodyHash, nil)
	}

	canonical := CanonicalString(method, uri, h)

	pub, ok := v.keys.Lookup(h.HubID, h.Kid)
	if !ok {
		return "", oerrors.NewAuthenticationError(ReasonUnknownKey, nil).WithContext("hub_id", h.HubID).WithContext("kid", h.Kid)
	}

	raw, err := base64.StdEncoding.DecodeString(h.Signature)
	if err != nil {
		return "", oerrors.NewAuthenticationError(ReasonMalformedHeader, err)
	}
	if !pub.Verify([]byte(canonical), solana.SignatureFromBytes(raw)) {
		return "", oerrors.NewAuthenticationError(ReasonBadSignature, nil)
	}
	return h.HubID, nil
}

func parseHeaders(header http.Header) (Headers, error) {
	h := Headers{
		HubID:     header.Get(HeaderHubID),
		Kid:       header.Get(HeaderKid),
		Timestamp: header.Get(HeaderTimestamp),
		Nonce:     header.Get(HeaderNonce),
		BodyHash:  header.Get(HeaderBodySHA256),
		Signature: header.Get(HeaderSignature),
	}
	checks := []struct {
		name  string
		value string
		ok    func(string) bool
	}{
		{HeaderHubID, h.HubID, idPattern.MatchString},
		{HeaderKid, h.Kid, idPattern.MatchString},
		{HeaderTimestamp, h.Timestamp, timestampPattern.MatchString},
		{HeaderNonce, h.Nonce, noncePattern.MatchString},
		{HeaderBodySHA256, h.BodyHash, bodyHashPattern.MatchString},
		{HeaderSignature, h.Signature, signaturePattern.MatchString},
	}
	for _, c := range checks {
		if c.value == "" {
			return h, oerrors.NewAuthenticationError(ReasonMissingHeader, nil).WithContext("header", c.name)
		}
		if !c.ok(c.value) {
			return h, oerrors.NewAuthenticationError(ReasonMalformedHeader, nil).WithContext("header", c.name)
		}
	}
	return h, nil
}
