package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strings"

	"github.com/example/envelopes/internal/password"
	"github.com/example/envelopes/internal/token"
)

const maxBodyBytes = 1 << 20

type signupRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type creds struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return invalid("Invalid request body")
	}
	return nil
}

// normalizeEmail lowercases and validates a bare address ("a@b.c", no display name).
func normalizeEmail(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "", invalid("Invalid email address")
	}
	return s, nil
}

func (a *App) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var in signupRequest
	if err := decodeJSON(w, r, &in); err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if in.FirstName == "" || in.LastName == "" || in.Email == "" || in.Password == "" {
		a.writeAPIError(w, r, invalid("first_name, last_name, email and password are required"))
		return
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}

	ctx := r.Context()
	// Fast path only; the unique index on users.email decides races.
	existing, err := a.DB.GetUserByEmail(ctx, email)
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	if existing != nil {
		a.metrics.authEvent("signup", "duplicate")
		a.writeAPIError(w, r, ErrDuplicateEmail)
		return
	}

	hashed, err := a.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, password.ErrTooLong) {
			err = invalid("Password must be at most 72 bytes")
		}
		a.writeAPIError(w, r, err)
		return
	}
	user, err := a.DB.CreateUser(ctx, &User{
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Email:          email,
		HashedPassword: hashed,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			a.metrics.authEvent("signup", "duplicate")
		}
		a.writeAPIError(w, r, err)
		return
	}

	a.metrics.authEvent("signup", "success")
	a.log.InfoContext(ctx, "user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

func (a *App) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var c creds
	if err := decodeJSON(w, r, &c); err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	ctx := r.Context()
	email := strings.ToLower(strings.TrimSpace(c.Email))

	user, err := a.DB.GetUserByEmail(ctx, email)
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	if user == nil {
		// Burn the same bcrypt work as a real mismatch.
		a.hasher.Verify(c.Password, a.dummyHash)
		a.metrics.authEvent("login", "failure")
		a.writeAPIError(w, r, fmt.Errorf("%w: unknown email", ErrInvalidCredentials))
		return
	}
	if !a.hasher.Verify(c.Password, user.HashedPassword) {
		a.metrics.authEvent("login", "failure")
		a.writeAPIError(w, r, fmt.Errorf("%w: password mismatch", ErrInvalidCredentials))
		return
	}

	access, err := a.tokens.IssueAccess(identityOf(user), 0)
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	refresh, err := a.tokens.IssueRefresh(user.Email)
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}

	setSessionCookies(w, user, refresh)
	a.metrics.authEvent("login", "success")
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: access,
		TokenType:   "bearer",
		Name:        user.FirstName,
	})
}

// HandleRefresh mints a new access token from the refresh_token cookie. A
// JSON body {"refresh_token": "..."} is accepted for clients without cookies.
func (a *App) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var raw string
	if c, err := r.Cookie(cookieRefreshToken); err == nil {
		raw = c.Value
	} else {
		var in struct {
			RefreshToken string `json:"refresh_token"`
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
			a.writeAPIError(w, r, invalid("Invalid request body"))
			return
		}
		raw = in.RefreshToken
	}
	if raw == "" {
		a.metrics.authEvent("refresh", "failure")
		a.writeAPIError(w, r, fmt.Errorf("%w: no refresh token presented", token.ErrInvalidToken))
		return
	}

	claims, err := a.tokens.VerifyRefresh(raw)
	if err != nil {
		a.metrics.authEvent("refresh", "failure")
		a.writeAPIError(w, r, err)
		return
	}
	ctx := r.Context()
	user, err := a.DB.GetUserByEmail(ctx, claims.Email())
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	if user == nil {
		a.metrics.authEvent("refresh", "failure")
		a.writeAPIError(w, r, fmt.Errorf("%w: subject no longer exists", token.ErrInvalidToken))
		return
	}

	access, err := a.tokens.IssueAccess(identityOf(user), 0)
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	a.metrics.authEvent("refresh", "success")
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access, TokenType: "bearer"})
}

// HandleLogout drops the session cookies. Refresh tokens are not tracked
// server side, so a copied token stays valid until it expires.
func (a *App) HandleLogout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func identityOf(u *User) token.Identity {
	return token.Identity{UserID: u.ID, Email: u.Email, FirstName: u.FirstName}
}
