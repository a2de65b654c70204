package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"attendance/internal/capability"
)

const (
	ctxCapability = "capability"
	ctxAuthBypass = "auth_bypass"
)

const missingTokenMessage = "a valid token is missing, provide one as a bearer token"

// AuthGate verifies a bearer token when present and attaches the resulting
// capability to the request context. While first-run mode is active the gate
// waves everything through, then re-checks whether the mode should end once
// the request has been fully served.
func (s *Server) AuthGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.deps.FirstRun.Active() {
			c.Set(ctxAuthBypass, true)
			c.Next()
			s.deps.FirstRun.Recheck(c.Request.Context())
			return
		}

		authz := c.GetHeader("Authorization")
		if authz == "" {
			// Unauthenticated; every guarded route denies downstream.
			c.Next()
			return
		}
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": missingTokenMessage})
			return
		}

		cap, err := s.deps.Tokens.Verify(strings.TrimSpace(authz[len("bearer "):]))
		if err != nil {
			tokenRejections.Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(ctxCapability, cap)
		c.Next()
	}
}

// RequireCap guards a route with a disjunction of capabilities: any one of
// them passes, and Administrator always passes. The denial body never names
// the capability the route required.
func (s *Server) RequireCap(caps ...capability.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetBool(ctxAuthBypass) {
			c.Next()
			return
		}
		heldAny, ok := c.Get(ctxCapability)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": missingTokenMessage})
			return
		}
		if !capability.Check(heldAny.(capability.Capability), caps...) {
			authzDenials.Inc()
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": capability.DeniedMessage})
			return
		}
		c.Next()
	}
}
