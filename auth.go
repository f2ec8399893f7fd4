package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/example/envelopes/internal/token"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

// Session cookie names set by login and read by refresh.
const (
	cookieRefreshToken = "refresh_token"
	cookieUserID       = "user_id"
	cookieFirstName    = "first_name"
)

// bearerToken returns the credential of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	scheme, tok, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// RequireAccessToken rejects requests without a valid access token and
// stores the token's user id in the request context.
func (a *App) RequireAccessToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := bearerToken(r)
		if !ok {
			a.writeAPIError(w, r, fmt.Errorf("%w: missing bearer token", ErrUnauthorized))
			return
		}
		uid, err := a.tokens.ExtractUserID(tok)
		if err != nil {
			a.writeAPIError(w, r, fmt.Errorf("%w: %w", ErrUnauthorized, err))
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, uid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFromContext(ctx context.Context) (int64, bool) {
	uid, ok := ctx.Value(userIDKey).(int64)
	return uid, ok && uid != 0
}

func sessionCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}

// setSessionCookies lives as long as the refresh token it carries.
func setSessionCookies(w http.ResponseWriter, u *User, refresh string) {
	maxAge := int(token.RefreshTTL.Seconds())
	http.SetCookie(w, sessionCookie(cookieRefreshToken, refresh, maxAge))
	http.SetCookie(w, sessionCookie(cookieUserID, strconv.FormatInt(u.ID, 10), maxAge))
	http.SetCookie(w, sessionCookie(cookieFirstName, url.QueryEscape(u.FirstName), maxAge))
}

func clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{cookieRefreshToken, cookieUserID, cookieFirstName} {
		http.SetCookie(w, sessionCookie(name, "", -1))
	}
}
