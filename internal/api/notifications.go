package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gitping/relay/internal/apperror"
	"github.com/gitping/relay/internal/auth"
	"github.com/gitping/relay/internal/db"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type notificationUpdateRequest struct {
	Subject *string `json:"subject"`
	Text    *string `json:"text"`
	HTML    *string `json:"html"`
	Viewed  *bool   `json:"viewed"`
}

// ListNotifications handles GET /notification/list?limit=20&offset=0,
// newest first. The total row count goes out in X-Total-Count so the app
// can paginate without a second query.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := auth.UserIDFromContext(ctx)

	limit := defaultPageSize
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= maxPageSize {
			limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	notifs, total, err := h.notifications.ListNotificationsByUser(ctx, userID, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if notifs == nil {
		notifs = []*db.Notification{}
	}

	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	h.writeJSON(w, http.StatusOK, notifs)
}

// GetNotification handles GET /notification/{id}. A notification owned by
// another user is indistinguishable from a missing one.
func (h *Handler) GetNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := auth.UserIDFromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, apperror.BadRequest("id must be a valid UUID"))
		return
	}

	notif, err := h.notifications.GetNotification(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, apperror.NotFound("Notification"))
			return
		}
		h.writeError(w, err)
		return
	}
	if notif.UserID != userID {
		h.writeError(w, apperror.NotFound("Notification"))
		return
	}

	h.writeJSON(w, http.StatusOK, notif)
}

// UpdateNotification handles PUT /notification/{id}. Headers are not
// writable; the request shape simply has no field for them.
func (h *Handler) UpdateNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := auth.UserIDFromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, apperror.BadRequest("id must be a valid UUID"))
		return
	}

	var req notificationUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperror.BadRequest("Malformed JSON body"))
		return
	}

	notif, err := h.notifications.UpdateNotification(ctx, id, userID, db.NotificationUpdate{
		Subject: req.Subject,
		Text:    req.Text,
		HTML:    req.HTML,
		Viewed:  req.Viewed,
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, apperror.NotFound("Notification"))
			return
		}
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, notif)
}
