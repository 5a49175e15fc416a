package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/wyrmtable/internal/identity"
	apperrors "github.com/louisbranch/wyrmtable/internal/platform/errors"
)

type contextKey int

const identityKey contextKey = iota

// callerFrom returns the verified identity placed on the context by authed.
func callerFrom(ctx context.Context) identity.Identity {
	caller, _ := ctx.Value(identityKey).(identity.Identity)
	return caller
}

// authed verifies the bearer token, applies the per-caller rate limit, and
// invokes next with the identity on the request context.
func (g *Gateway) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		caller, err := g.verifier.Verify(token)
		if err != nil {
			writeError(w, err)
			return
		}
		if g.limiter != nil && !g.limiter.Allow(caller.UID) {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Code: "RATE_LIMITED", Message: "too many requests"})
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), identityKey, caller)))
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	// Browsers cannot set headers on websocket dials; the token rides a
	// query parameter there.
	return r.URL.Query().Get("token")
}

func (g *Gateway) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		g.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack keeps the websocket upgrade working through the logging wrapper.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hijacker.Hijack()
}

type errorBody struct {
	Code     string            `json:"code"`
	Domain   string            `json:"domain,omitempty"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	info := apperrors.ErrorInfo(err)
	writeJSON(w, httpStatus(apperrors.Code(info.Reason)), errorBody{
		Code:     info.Reason,
		Domain:   info.Domain,
		Message:  err.Error(),
		Metadata: info.Metadata,
	})
}

func httpStatus(code apperrors.Code) int {
	switch code {
	case apperrors.CodeIdentityUnverified:
		return http.StatusUnauthorized
	case apperrors.CodePermissionDenied:
		return http.StatusForbidden
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeIllegalOperation,
		apperrors.CodeInviteDuplicate,
		apperrors.CodeInviteNotPending,
		apperrors.CodeEncounterAlreadyActive,
		apperrors.CodeEncounterNotActive,
		apperrors.CodeEncounterTurnConflict,
		apperrors.CodeRollDuplicateResponse:
		return http.StatusConflict
	case apperrors.CodeInviteExpired:
		return http.StatusGone
	case apperrors.CodeUpstreamMalformed:
		return http.StatusBadGateway
	case apperrors.CodeUpstreamRateLimited:
		return http.StatusTooManyRequests
	case apperrors.CodeUnknown:
		return http.StatusInternalServerError
	default:
		// The remaining codes are input validation failures.
		return http.StatusBadRequest
	}
}

// decodeBody parses a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "BAD_REQUEST", Message: "invalid request body"})
		return false
	}
	return true
}
