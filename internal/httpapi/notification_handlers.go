package httpapi

import (
	"net/http"

	"github.com/tradefloor/tradefloor/internal/web/middleware"
	"github.com/tradefloor/tradefloor/internal/web/request"
	"github.com/tradefloor/tradefloor/internal/web/response"
)

type notificationPrefRequest struct {
	Enabled bool `json:"enabled"`
}

func (a *API) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	unreadOnly := request.GetQueryParamBool(r, "unread", false)
	limit := pageLimit(r)

	notifs, err := a.deps.Notifs.List(r.Context(), userID, unreadOnly, limit, beforeCursor(r))
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}

	meta := &response.ListMeta{Limit: limit, HasMore: len(notifs) == limit}
	if meta.HasMore {
		meta.NextCursor = notifs[len(notifs)-1].ID.String()
	}
	response.RenderList(w, http.StatusOK, notifs, meta)
}

func (a *API) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	count, err := a.deps.Notifs.UnreadCount(r.Context(), userID)
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}

	response.RenderJSON(w, http.StatusOK, map[string]int{"unread": count})
}

func (a *API) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	notificationID, err := request.GetParamUUID(r, "notificationID")
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := a.deps.Notifs.MarkRead(r.Context(), userID, notificationID); err != nil {
		a.renderServiceError(w, r, err)
		return
	}

	response.RenderNoContent(w)
}

func (a *API) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	updated, err := a.deps.Notifs.MarkAllRead(r.Context(), userID)
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}

	response.RenderJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

func (a *API) handleSetNotificationPref(w http.ResponseWriter, r *http.Request) {
	channelID, err := request.GetParamUUID(r, "channelID")
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}

	var req notificationPrefRequest
	if err := a.parser.ParseJSON(w, r, &req); err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := a.deps.Notifs.SetChannelPref(r.Context(), userID, channelID, req.Enabled); err != nil {
		a.renderServiceError(w, r, err)
		return
	}

	response.RenderNoContent(w)
}
