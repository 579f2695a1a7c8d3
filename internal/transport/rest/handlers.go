package rest

import (
	"errors"
	"net/http"

	"github.com/baechuer/waitline/internal/domain"
	"github.com/baechuer/waitline/internal/service"
	"github.com/baechuer/waitline/internal/transport/rest/response"
	"github.com/go-chi/render"
)

// Handler implements the Session-bound API's HTTP surface.
type Handler struct {
	api      *service.PartyAPI
	sessions *SessionManager
	bridge   *StreamBridge
}

func NewHandler(api *service.PartyAPI, sessions *SessionManager, bridge *StreamBridge) *Handler {
	return &Handler{api: api, sessions: sessions, bridge: bridge}
}

// Root redirects to the party-creation entry point.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/party/new", http.StatusFound)
}

// NewPartyForm is a stub for the form page; page rendering is an external
// collaborator, not part of the admission-control core this repository
// implements.
func (h *Handler) NewPartyForm(w http.ResponseWriter, r *http.Request) {
	response.Data(w, http.StatusOK, map[string]string{"form": "party/new"})
}

// CreateParty handles `POST /party`.
func (h *Handler) CreateParty(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Size int    `json:"size"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}

	result, err := h.api.CreateParty(r.Context(), req.Name, req.Size)
	if err != nil {
		handleErr(w, r, h.sessions, err)
		return
	}

	sess, sErr := h.sessions.get(r)
	if sErr == nil {
		setParty(sess, result.PartyID, req.Size, result.PositionInQueue)
		_ = sess.Save(r, w)
	}

	response.Data(w, http.StatusCreated, map[string]any{
		"partyID":         result.PartyID,
		"positionInQueue": result.PositionInQueue,
	})
}

// PartyStatus handles `GET /party` — the status page in the original, here
// a JSON status payload (page rendering is an external collaborator).
func (h *Handler) PartyStatus(w http.ResponseWriter, r *http.Request) {
	ps, _, err := h.sessions.readParty(r)
	if err != nil || !ps.HasParty {
		http.Redirect(w, r, "/party/new", http.StatusFound)
		return
	}

	party, err := h.api.GetParty(r.Context(), ps.PartyID)
	if err != nil {
		handleErr(w, r, h.sessions, err)
		return
	}

	response.Data(w, http.StatusOK, map[string]any{
		"partyID": party.PartyID,
		"status":  party.Status,
		"size":    party.Size,
	})
}

// CheckIn handles `PATCH /party/check-in`.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	ps, sess, err := h.sessions.readParty(r)
	if err != nil || !ps.HasParty {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "no active party session", nil)
		return
	}

	expiration, err := h.api.CheckIn(r.Context(), ps.PartyID, ps.PartySize)
	if err != nil {
		handleErr(w, r, h.sessions, err)
		return
	}

	setSeated(sess, expiration)
	_ = sess.Save(r, w)

	response.Data(w, http.StatusOK, map[string]string{"message": "checked in"})
}

// Leave handles `DELETE /party`.
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	ps, sess, err := h.sessions.readParty(r)
	if err != nil || !ps.HasParty {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "no active party session", nil)
		return
	}

	if err := h.api.LeaveQueue(r.Context(), ps.PartyID); err != nil {
		handleErr(w, r, h.sessions, err)
		return
	}

	clearParty(sess)
	_ = sess.Save(r, w)
	response.NoContent(w)
}

// Events handles `GET /party/events`, delegating to the Event Stream
// Bridge.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	ps, _, err := h.sessions.readParty(r)
	if err != nil || !ps.HasParty {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "no active party session", nil)
		return
	}

	party, err := h.api.GetParty(r.Context(), ps.PartyID)
	if err != nil {
		if errors.Is(err, domain.ErrPartyNotFound) {
			fail(w, r, http.StatusNotFound, "party.not_found", "party not found", nil)
			return
		}
		fail(w, r, http.StatusInternalServerError, "internal", "internal error", nil)
		return
	}

	h.bridge.Serve(w, r, party)
}

func fail(w http.ResponseWriter, r *http.Request, status int, code, message string, meta map[string]string) {
	response.Fail(w, status, code, message, meta, w.Header().Get(requestIDHeader))
}

func handleErr(w http.ResponseWriter, r *http.Request, sm *SessionManager, err error) {
	switch {
	case errors.Is(err, domain.ErrPartyNotFound):
		if sess, sErr := sm.get(r); sErr == nil {
			clearParty(sess)
			_ = sess.Save(r, w)
		}
		fail(w, r, http.StatusNotFound, "party.not_found", "party not found", nil)
	case errors.Is(err, domain.ErrPartyCouldNotBeCreated):
		fail(w, r, http.StatusBadRequest, "party.create_failed", "party could not be created", nil)
	case errors.Is(err, domain.ErrPartyCouldNotBeDeleted):
		fail(w, r, http.StatusBadRequest, "party.delete_failed", "party could not be deleted", nil)
	case errors.Is(err, domain.ErrPartyCouldNotSetSeated):
		fail(w, r, http.StatusBadRequest, "party.seat_failed", "party could not be seated", nil)
	default:
		fail(w, r, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}
