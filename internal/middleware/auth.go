package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/VladKvetkin/settlement/internal/services/jwttoken"
)

type UserIDKey struct{}

type RoleKey struct{}

const (
	TokenCookieName    = "token"
	TriggerTokenHeader = "X-Trigger-Token"
)

type TokenParser interface {
	Parse(string) (jwttoken.Claims, error)
}

func Auth(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(resp http.ResponseWriter, req *http.Request) {
			tokenCookie, err := req.Cookie(TokenCookieName)
			if err != nil {
				if errors.Is(err, http.ErrNoCookie) {
					resp.WriteHeader(http.StatusUnauthorized)
					return
				}

				resp.WriteHeader(http.StatusInternalServerError)
				return
			}

			claims, err := parser.Parse(tokenCookie.Value)
			if err != nil {
				resp.WriteHeader(http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(req.Context(), UserIDKey{}, claims.UserID)
			ctx = context.WithValue(ctx, RoleKey{}, claims.Role)

			next.ServeHTTP(resp, req.WithContext(ctx))
		})
	}
}

// RequireRole must run after Auth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(resp http.ResponseWriter, req *http.Request) {
			if got, _ := req.Context().Value(RoleKey{}).(string); got != role {
				resp.WriteHeader(http.StatusForbidden)
				return
			}

			next.ServeHTTP(resp, req)
		})
	}
}

// TriggerAuth admits event producers that present the shared trigger token.
func TriggerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(resp http.ResponseWriter, req *http.Request) {
			got := req.Header.Get(TriggerTokenHeader)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				resp.WriteHeader(http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(resp, req)
		})
	}
}
