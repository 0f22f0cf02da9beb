package ratelimit

import (
	"fmt"
	"net"
	"strings"
)

// Request is the part of an incoming request an Extractor may look at.
// huma.Context satisfies it as is.
type Request interface {
	RemoteAddr() string
	Header(name string) string
}

// Extractor maps a request to the key its quota is tracked under.
type Extractor interface {
	Extract(r Request) (ClientKey, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(r Request) (ClientKey, error)

func (f ExtractorFunc) Extract(r Request) (ClientKey, error) {
	return f(r)
}

// PeerAddr keys requests by the network peer address, port stripped.
func PeerAddr() Extractor {
	return ExtractorFunc(func(r Request) (ClientKey, error) {
		ip := peerIP(r.RemoteAddr())
		if ip == "" {
			return "", fmt.Errorf("%w: no usable peer address %q", ErrIdentifierUnavailable, r.RemoteAddr())
		}

		return ClientKey(ip), nil
	})
}

// HeaderKey keys requests by the value of the named header, e.g. an API key.
// Requests without the header cannot be identified.
func HeaderKey(name string) Extractor {
	return ExtractorFunc(func(r Request) (ClientKey, error) {
		v := strings.TrimSpace(r.Header(name))
		if v == "" {
			return "", fmt.Errorf("%w: missing %s header", ErrIdentifierUnavailable, name)
		}

		return ClientKey(v), nil
	})
}

// ForwardedFor keys requests by the originating client reported by a proxy:
// the first X-Forwarded-For hop, then X-Real-IP, then the peer address.
// Only use it behind a proxy that overwrites these headers.
func ForwardedFor() Extractor {
	peer := PeerAddr()

	return ExtractorFunc(func(r Request) (ClientKey, error) {
		if xff := r.Header("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := normalizeIP(strings.TrimSpace(first)); ip != "" {
				return ClientKey(ip), nil
			}
		}

		if ip := normalizeIP(strings.TrimSpace(r.Header("X-Real-IP"))); ip != "" {
			return ClientKey(ip), nil
		}

		return peer.Extract(r)
	})
}

func peerIP(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
	}

	return normalizeIP(host)
}

// normalizeIP returns the canonical form of an IP literal, or "" when s is not one.
func normalizeIP(s string) string {
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}

	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}

	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}

	return ip.String()
}
