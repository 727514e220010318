package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/stillalive/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
	// ContextClaimsKey stores the parsed JWT claims.
	ContextClaimsKey = "claims"
)

type authError struct {
	code    int
	message string
}

func (e *authError) Error() string { return e.message }

var errNoCredentials = &authError{code: 40101, message: "authorization header missing"}

// AuthRequired ensures the request is authenticated via JWT.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, err := authenticate(ctx)
		if err != nil {
			var ae *authError
			if !errors.As(err, &ae) {
				ae = &authError{code: 40105, message: "invalid token"}
			}
			utils.Error(ctx, http.StatusUnauthorized, ae.code, ae.message)
			ctx.Abort()
			return
		}
		setIdentity(ctx, claims)
		ctx.Next()
	}
}

// OptionalAuth attaches the identity when a valid token is present and lets anonymous
// requests through. A present but invalid token is still rejected.
func OptionalAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, err := authenticate(ctx)
		switch {
		case err == nil:
			setIdentity(ctx, claims)
		case errors.Is(err, errNoCredentials):
		default:
			var ae *authError
			if !errors.As(err, &ae) {
				ae = &authError{code: 40105, message: "invalid token"}
			}
			utils.Error(ctx, http.StatusUnauthorized, ae.code, ae.message)
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// BearerToken extracts the raw token from the Authorization header.
func BearerToken(ctx *gin.Context) (string, error) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return "", errNoCredentials
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", &authError{code: 40102, message: "invalid authorization header format"}
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", &authError{code: 40103, message: "empty bearer token"}
	}
	return token, nil
}

func authenticate(ctx *gin.Context) (*utils.Claims, error) {
	token, err := BearerToken(ctx)
	if err != nil {
		return nil, err
	}
	claims, err := utils.ParseToken(token)
	if err != nil {
		return nil, &authError{code: 40105, message: "invalid token"}
	}
	if utils.IsTokenBlacklisted(ctx.Request.Context(), claims.ID) {
		return nil, &authError{code: 40104, message: "token revoked"}
	}
	return claims, nil
}

func setIdentity(ctx *gin.Context, claims *utils.Claims) {
	ctx.Set(ContextUserIDKey, claims.UserID)
	ctx.Set(ContextUsernameKey, claims.Username)
	ctx.Set(ContextClaimsKey, claims)
}
