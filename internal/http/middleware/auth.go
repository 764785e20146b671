// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the calling owner. Identify runs globally and never
// rejects a request; it only records who the caller is. RequireOwner guards
// the owner API and answers 401 when Identify found nobody.
//
// Accepted credentials, in order:
//   - Authorization: Bearer <HS256 JWT>; the owner is the "sub" claim.
//   - X-User-ID header, only when AuthOptions.AllowUserHeader is set (trusted
//     gateway deployments and local development).
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// ctxKeyUserID is shared with the rate limiter and the handlers.
	ctxKeyUserID = "userID"
	// HeaderUserID carries a pre-authenticated owner id from a trusted proxy.
	HeaderUserID = "X-User-ID"
)

// AuthOptions configures Identify.
type AuthOptions struct {
	// Secret is the HMAC key for bearer tokens. Empty disables bearer auth.
	Secret string
	// Issuer, when set, must match the token "iss" claim.
	Issuer string
	// AllowUserHeader trusts HeaderUserID as the owner id.
	AllowUserHeader bool
}

var errBadSigningMethod = errors.New("unexpected signing method")

// Identify stores the caller's owner id in the Gin context under "userID".
// Invalid tokens are logged at debug level and treated as anonymous.
func Identify(opts AuthOptions) gin.HandlerFunc {
	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	parser := jwt.NewParser(parserOpts...)
	secret := []byte(opts.Secret)

	return func(c *gin.Context) {
		if raw, ok := bearerToken(c.GetHeader("Authorization")); ok && len(secret) > 0 {
			claims := &jwt.RegisteredClaims{}
			_, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errBadSigningMethod
				}
				return secret, nil
			})
			switch {
			case err != nil:
				LoggerFrom(c).Debug().Err(err).Msg("bearer token rejected")
			case strings.TrimSpace(claims.Subject) != "":
				c.Set(ctxKeyUserID, strings.TrimSpace(claims.Subject))
			}
		}

		if _, ok := c.Get(ctxKeyUserID); !ok && opts.AllowUserHeader {
			if uid := strings.TrimSpace(c.GetHeader(HeaderUserID)); uid != "" {
				c.Set(ctxKeyUserID, uid)
			}
		}
		c.Next()
	}
}

// RequireOwner aborts with 401 unless Identify resolved an owner.
func RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		if OwnerID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "unauthorized",
				"error":      "Unauthorized",
			})
			return
		}
		c.Next()
	}
}

// OwnerID returns the authenticated owner id, or "" for anonymous callers.
func OwnerID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func bearerToken(h string) (string, bool) {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}
