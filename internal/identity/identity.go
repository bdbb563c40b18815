// Package identity derives the anonymized per-client key used for admission
// accounting. Raw IP addresses never reach the admission map.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the client address from a request. Priority order: the
// trusted-proxy header, the first X-Forwarded-For entry, then the raw peer
// address.
func ClientIP(header http.Header, remoteAddr string) string {
	if ip := header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}

	if forwarded := header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// Hash anonymizes an IP with a keyed SHA-256 digest. The salt keeps the
// mapping from being reversible by rainbow table.
func Hash(salt, ip string) string {
	h := sha256.New()
	h.Write([]byte(salt))
	h.Write([]byte(ip))
	return hex.EncodeToString(h.Sum(nil))
}
