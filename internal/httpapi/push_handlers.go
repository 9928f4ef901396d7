package httpapi

import (
	"net/http"

	"github.com/tradefloor/tradefloor/internal/web/middleware"
	"github.com/tradefloor/tradefloor/internal/web/response"
)

// pushSubscribeRequest mirrors the JSON produced by the browser's
// PushSubscription.toJSON.
type pushSubscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

type pushUnsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

func (a *API) handlePushSubscribe(w http.ResponseWriter, r *http.Request) {
	var req pushSubscribeRequest
	if err := a.parser.ParseJSON(w, r, &req); err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r.Context())
	sub, err := a.deps.Push.Subscribe(r.Context(), userID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth)
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}

	response.RenderJSON(w, http.StatusCreated, sub)
}

func (a *API) handlePushUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req pushUnsubscribeRequest
	if err := a.parser.ParseJSON(w, r, &req); err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := a.deps.Push.Unsubscribe(r.Context(), userID, req.Endpoint); err != nil {
		a.renderServiceError(w, r, err)
		return
	}

	response.RenderNoContent(w)
}
