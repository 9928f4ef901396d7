package httpapi

import (
	"net/http"

	"github.com/tradefloor/tradefloor/internal/domain"
	"github.com/tradefloor/tradefloor/internal/web/response"
)

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := a.parser.ParseJSON(w, r, &req); err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}

	user, err := a.deps.Accounts.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}

	response.RenderJSON(w, http.StatusCreated, user)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := a.parser.ParseJSON(w, r, &req); err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}

	user, token, err := a.deps.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}

	response.RenderJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}
