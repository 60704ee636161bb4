package hubauth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	oerrors "github.com/pushchain/bridge-oracle/oracleClient/errors"
	"github.com/pushchain/bridge-oracle/oracleClient/metrics"
)

// MaxBodyBytes bounds the request body read for hashing.
const MaxBodyBytes = 1 << 20

type hubIDKey struct{}

// HubIDFromRequest returns the authenticated hub id set by Middleware.
func HubIDFromRequest(r *http.Request) (string, bool) {
	id, ok := r.Context().Value(hubIDKey{}).(string)
	return id, ok
}

// Middleware rejects requests that fail verification with a generic 401. The
// reason is only logged and counted.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			var err error
			body, err = io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
			if err != nil || len(body) > MaxBodyBytes {
				v.reject(w, r, oerrors.NewAuthenticationError(ReasonMalformedHeader, err))
				return
			}
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		hubID, err := v.Verify(r.Method, r.URL.RequestURI(), r.Header, body)
		if err != nil {
			v.reject(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), hubIDKey{}, hubID)))
	})
}

func (v *Verifier) reject(w http.ResponseWriter, r *http.Request, err error) {
	reason := oerrors.Reason(err)
	metrics.AuthRejections.WithLabelValues(reason).Inc()
	v.logger.Warn().
		Err(err).
		Str("reason", reason).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("remote", r.RemoteAddr).
		Msg("rejected hub request")

	status, message := http.StatusUnauthorized, "unauthorized"
	if oerrors.HasCode(err, oerrors.ErrCodeDatabase) {
		status, message = http.StatusInternalServerError, "internal error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
