package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"template-store/internal/utils"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
)

const adminIDKey = "admin_id"

// Middleware protects the content-management mutations behind OIDC bearer
// tokens. The issuer is discovered once at startup; a misconfigured issuer
// fails fast rather than letting unauthenticated writes through.
func Middleware(issuer string) (gin.HandlerFunc, error) {
	if issuer == "" {
		return nil, fmt.Errorf("OIDC issuer not configured")
	}

	provider, err := oidc.NewProvider(context.Background(), issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	// SkipClientIDCheck: any client from the realm may manage templates
	verifier := provider.Verifier(&oidc.Config{
		SkipClientIDCheck: true,
	})

	return func(c *gin.Context) {
		rawToken, err := ExtractTokenFromRequest(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", err.Error()))
			return
		}

		if _, err := verifier.Verify(c.Request.Context(), rawToken); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", fmt.Sprintf("invalid token: %v", err)))
			return
		}

		// The token is verified above; only the subject is needed here.
		sub, err := ExtractSubjectFromJWT(rawToken)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "failed to parse claims"))
			return
		}

		c.Set(adminIDKey, sub)
		c.Next()
	}, nil
}

// AdminID returns the authenticated subject set by Middleware, or "".
func AdminID(c *gin.Context) string {
	if id, ok := c.Get(adminIDKey); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// ExtractTokenFromRequest pulls the bearer token out of the Authorization
// header.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("authorization header is missing")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}
