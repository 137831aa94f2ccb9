package interceptors

import (
	"context"
	"net"
	"strings"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

// ClientIP returns the caller's address: the peer's host, or "unknown" when there is no peer.
// When trustProxyHeaders is set (the server sits behind a proxy that overwrites them), the first
// x-forwarded-for entry, then x-real-ip, take precedence over the peer.
func ClientIP(ctx context.Context, trustProxyHeaders bool) string {
	if trustProxyHeaders {
		if ip := forwardedIP(ctx); ip != "" {
			return ip
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}

func forwardedIP(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
		s, _, _ := strings.Cut(vals[0], ",")
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	if vals := md.Get("x-real-ip"); len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}
