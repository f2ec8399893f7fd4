package main

import (
	"fmt"
	"net/http"
	"strings"
)

type createEnvelopeRequest struct {
	EnvelopeName  string `json:"envelope_name"`
	InitialAmount *int64 `json:"initial_amount"`
}

// HandleListEnvelopes returns every envelope owned by the caller.
// GET /envelopes
//
// An empty result is answered with 404 rather than an empty list; clients
// depend on that.
func (a *App) HandleListEnvelopes(w http.ResponseWriter, r *http.Request) {
	uid, ok := userIDFromContext(r.Context())
	if !ok {
		a.writeAPIError(w, r, ErrUnauthorized)
		return
	}

	envelopes, err := a.DB.ListEnvelopesByUser(r.Context(), uid)
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	if len(envelopes) == 0 {
		a.writeAPIError(w, r, fmt.Errorf("%w: user %d has no envelopes", ErrNotFound, uid))
		return
	}

	out := make([]envelopeResponse, 0, len(envelopes))
	for _, e := range envelopes {
		out = append(out, newEnvelopeResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreateEnvelope creates an envelope with remaining_amount equal to
// initial_amount.
// POST /add-envelope
func (a *App) HandleCreateEnvelope(w http.ResponseWriter, r *http.Request) {
	uid, ok := userIDFromContext(r.Context())
	if !ok {
		a.writeAPIError(w, r, ErrUnauthorized)
		return
	}

	var req createEnvelopeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	name := strings.TrimSpace(req.EnvelopeName)
	if name == "" {
		a.writeAPIError(w, r, invalid("envelope_name is required"))
		return
	}
	if req.InitialAmount == nil {
		a.writeAPIError(w, r, invalid("initial_amount is required"))
		return
	}
	if *req.InitialAmount < 0 {
		a.writeAPIError(w, r, invalid("initial_amount must not be negative"))
		return
	}

	ctx := r.Context()
	// The (user_id, envelope_name) unique constraint is authoritative; this
	// lookup just answers the common case without an insert.
	existing, err := a.DB.GetEnvelopeByName(ctx, uid, name)
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}
	if existing != nil {
		a.writeAPIError(w, r, ErrDuplicateEnvelope)
		return
	}

	env, err := a.DB.CreateEnvelope(ctx, &Envelope{
		UserID:          uid,
		Name:            name,
		InitialAmount:   *req.InitialAmount,
		RemainingAmount: *req.InitialAmount,
	})
	if err != nil {
		a.writeAPIError(w, r, err)
		return
	}

	a.log.InfoContext(ctx, "envelope created", "user_id", uid, "envelope_id", env.ID)
	writeJSON(w, http.StatusCreated, newEnvelopeResponse(env))
}
