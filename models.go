package main

import "time"

// User represents a registered account
type User struct {
	ID             int64
	FirstName      string
	LastName       string
	Email          string
	HashedPassword string
	CreatedAt      time.Time
}

// Envelope is a named budget bucket owned by one user
type Envelope struct {
	ID              int64
	UserID          int64
	Name            string
	InitialAmount   int64
	RemainingAmount int64
	CreatedAt       time.Time
}

// userResponse never carries the password hash
type userResponse struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

func newUserResponse(u *User) userResponse {
	return userResponse{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
}

type envelopeResponse struct {
	ID              int64  `json:"id"`
	UserID          int64  `json:"user_id"`
	EnvelopeName    string `json:"envelope_name"`
	InitialAmount   int64  `json:"initial_amount"`
	RemainingAmount int64  `json:"remaining_amount"`
}

func newEnvelopeResponse(e *Envelope) envelopeResponse {
	return envelopeResponse{
		ID:              e.ID,
		UserID:          e.UserID,
		EnvelopeName:    e.Name,
		InitialAmount:   e.InitialAmount,
		RemainingAmount: e.RemainingAmount,
	}
}

// tokenResponse is returned by login and refresh
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Name        string `json:"name,omitempty"`
}
