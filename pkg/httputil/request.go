package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/accounts/pkg/auth"
)

// DecodeJSON decodes the request body into dest. An empty body leaves dest
// untouched so that field validation reports what is missing.
func DecodeJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return nil
	}

	dec := json.NewDecoder(r.Body)
	err := dec.Decode(dest)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		// The body must hold exactly one JSON value.
		var trailing json.RawMessage
		if err = dec.Decode(&trailing); errors.Is(err, io.EOF) {
			return nil
		}
		if err == nil {
			err = errors.New("unexpected data after JSON body")
		}
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &auth.Error{Kind: auth.KindValidation, Message: "request body too large", Err: err}
	}
	return &auth.Error{Kind: auth.KindValidation, Message: "invalid JSON body", Err: err}
}

// PathVar returns the named mux path variable, or "" when absent
func PathVar(r *http.Request, key string) string {
	return mux.Vars(r)[key]
}

// ClientIP returns the caller's address. Forwarding headers are only honoured
// when trustProxy is set; otherwise they are trivially spoofable.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
