package auth

import "crypto/subtle"

// GatewayGuard validates the static shared-secret header that gates every
// externally reachable route. An empty configured key means no request is
// ever allowed: an unconfigured deployment rejects all traffic rather than
// silently disabling the gate.
type GatewayGuard struct {
	key string
}

// NewGatewayGuard creates a guard for the configured shared secret.
func NewGatewayGuard(key string) *GatewayGuard {
	return &GatewayGuard{key: key}
}

// Allow reports whether the caller-supplied header value matches the
// configured key.
func (g *GatewayGuard) Allow(headerValue string) bool {
	if g.key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(headerValue), []byte(g.key)) == 1
}

// Configured reports whether a gateway key was provided at startup. Used
// only for a startup warning; Allow already fails closed.
func (g *GatewayGuard) Configured() bool {
	return g.key != ""
}
