package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"scribe/common"
	"scribe/policy"
	"scribe/token"
)

const identityKey = "identity"

// notAuthorized is the single message for every rejected credential, so the
// response never tells a forged token from an expired one.
const notAuthorized = "Not authorized to access this route"

// TokenVerifier is the part of the token service the middleware needs.
type TokenVerifier interface {
	Verify(raw string) (policy.Identity, error)
}

var _ TokenVerifier = (*token.Service)(nil)

// RequireAuth resolves the bearer token into an identity or stops the request
// with 401 before any handler runs.
func RequireAuth(tokens TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			common.RespondError(c, nil, common.Unauthenticated(notAuthorized))
			return
		}

		id, err := tokens.Verify(raw)
		if err != nil {
			common.RespondError(c, nil, common.Unauthenticated(notAuthorized))
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// CurrentIdentity returns the identity attached by RequireAuth. The zero
// Identity (anonymous) is returned when none is attached.
func CurrentIdentity(c *gin.Context) policy.Identity {
	v, exists := c.Get(identityKey)
	if !exists {
		return policy.Identity{}
	}
	id, _ := v.(policy.Identity)
	return id
}

func bearerToken(header string) (string, bool) {
	scheme, raw, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	return raw, true
}
