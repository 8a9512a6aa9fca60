package mockgw

import (
	"net"
	"net/http"
	"strings"

	"clawlink/pkg/tokens"
)

// extractToken reads the credential from the token query parameter or an
// Authorization: Bearer header, in that order
func extractToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
	}
	return ""
}

// authorize reports whether r may upgrade. With no configured token every
// request is accepted.
func (s *Server) authorize(r *http.Request) bool {
	if s.token == "" {
		return true
	}
	return tokens.Equal(extractToken(r), s.token)
}

// rejectUpgrade answers a failed handshake before the upgrade happens
func rejectUpgrade(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="clawlink"`)
	http.Error(w, "invalid or missing token", http.StatusUnauthorized)
}

// callerKey identifies who is on the other end for rate limiting
func callerKey(r *http.Request) string {
	if t := extractToken(r); t != "" {
		return "token:" + t
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}
