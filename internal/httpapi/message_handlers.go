package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tradefloor/tradefloor/internal/web/middleware"
	"github.com/tradefloor/tradefloor/internal/web/request"
	"github.com/tradefloor/tradefloor/internal/web/response"
)

type postMessageRequest struct {
	Body string `json:"body"`
}

// pageLimit reads the limit query parameter with the same bounds the
// services apply, so the pagination meta matches what was fetched.
func pageLimit(r *http.Request) int {
	limit := request.GetQueryParamInt(r, "limit", 50)
	if limit < 1 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	return limit
}

// beforeCursor reads the optional before query parameter.
func beforeCursor(r *http.Request) *uuid.UUID {
	if id := request.GetQueryParamUUID(r, "before"); id != uuid.Nil {
		return &id
	}
	return nil
}

func (a *API) handleListMessages(w http.ResponseWriter, r *http.Request) {
	channelID, err := request.GetParamUUID(r, "channelID")
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r.Context())
	limit := pageLimit(r)

	messages, err := a.deps.Chat.List(r.Context(), userID, channelID, limit, beforeCursor(r))
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}

	meta := &response.ListMeta{Limit: limit, HasMore: len(messages) == limit}
	if meta.HasMore {
		meta.NextCursor = messages[len(messages)-1].ID.String()
	}
	response.RenderList(w, http.StatusOK, messages, meta)
}

func (a *API) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	channelID, err := request.GetParamUUID(r, "channelID")
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}

	var req postMessageRequest
	if err := a.parser.ParseJSON(w, r, &req); err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r.Context())
	message, err := a.deps.Chat.Post(r.Context(), userID, channelID, req.Body)
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}

	response.RenderJSON(w, http.StatusCreated, message)
}
