package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tradefloor/tradefloor/internal/web/middleware"
	"github.com/tradefloor/tradefloor/internal/web/request"
	"github.com/tradefloor/tradefloor/internal/web/response"
)

type createServerRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type createSectionRequest struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
}

type createChannelRequest struct {
	Name      string     `json:"name"`
	Topic     string     `json:"topic"`
	SectionID *uuid.UUID `json:"section_id"`
	Position  int        `json:"position"`
}

type createRoleRequest struct {
	Name string `json:"name"`
}

type setMemberRoleRequest struct {
	RoleID uuid.UUID `json:"role_id"`
}

func (a *API) handleCreateServer(w http.ResponseWriter, r *http.Request) {
	var req createServerRequest
	if err := a.parser.ParseJSON(w, r, &req); err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}
	if req.Name == "" || req.Slug == "" {
		response.RenderUnprocessableEntity(w, "name and slug are required")
		return
	}

	userID := middleware.GetUserID(r.Context())
	server, err := a.deps.Access.CreateServer(r.Context(), req.Name, req.Slug, userID)
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}

	response.RenderJSON(w, http.StatusCreated, server)
}

func (a *API) handleListServers(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	servers, err := a.deps.Access.ServersForUser(r.Context(), userID)
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}

	response.RenderList(w, http.StatusOK, servers, nil)
}

func (a *API) handleJoinServer(w http.ResponseWriter, r *http.Request) {
	serverID, err := request.GetParamUUID(r, "serverID")
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r.Context())
	member, err := a.deps.Access.Join(r.Context(), serverID, userID)
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}

	response.RenderJSON(w, http.StatusCreated, member)
}

// handleListChannels returns only the channels the caller's role can
// view, so the sidebar never leaks premium rooms to free members.
func (a *API) handleListChannels(w http.ResponseWriter, r *http.Request) {
	serverID, err := request.GetParamUUID(r, "serverID")
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}

	userID := middleware.GetUserID(r.Context())
	channels, err := a.deps.Access.VisibleChannels(r.Context(), userID, serverID)
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}

	response.RenderList(w, http.StatusOK, channels, nil)
}

// requireAdmin resolves the caller's membership and rejects non-admins.
// Returns false after writing the response when the check fails.
func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request, serverID uuid.UUID) bool {
	userID := middleware.GetUserID(r.Context())
	ok, err := a.deps.Access.IsAdmin(r.Context(), serverID, userID)
	if err != nil {
		a.renderServiceError(w, r, err)
		return false
	}
	if !ok {
		response.RenderForbidden(w, "admin role required")
		return false
	}
	return true
}

func (a *API) handleCreateSection(w http.ResponseWriter, r *http.Request) {
	serverID, err := request.GetParamUUID(r, "serverID")
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}

	var req createSectionRequest
	if err := a.parser.ParseJSON(w, r, &req); err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}
	if req.Name == "" {
		response.RenderUnprocessableEntity(w, "name is required")
		return
	}

	if !a.requireAdmin(w, r, serverID) {
		return
	}

	section, err := a.deps.Access.CreateSection(r.Context(), serverID, req.Name, req.Position)
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}

	response.RenderJSON(w, http.StatusCreated, section)
}

func (a *API) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	serverID, err := request.GetParamUUID(r, "serverID")
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}

	var req createChannelRequest
	if err := a.parser.ParseJSON(w, r, &req); err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}
	if req.Name == "" {
		response.RenderUnprocessableEntity(w, "name is required")
		return
	}

	if !a.requireAdmin(w, r, serverID) {
		return
	}

	channel, err := a.deps.Access.CreateChannel(r.Context(), serverID, req.SectionID, req.Name, req.Topic, req.Position)
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}

	response.RenderJSON(w, http.StatusCreated, channel)
}

func (a *API) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	serverID, err := request.GetParamUUID(r, "serverID")
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}

	var req createRoleRequest
	if err := a.parser.ParseJSON(w, r, &req); err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}
	if req.Name == "" {
		response.RenderUnprocessableEntity(w, "name is required")
		return
	}

	if !a.requireAdmin(w, r, serverID) {
		return
	}

	role, err := a.deps.Access.CreateRole(r.Context(), serverID, req.Name)
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}

	response.RenderJSON(w, http.StatusCreated, role)
}

func (a *API) handleSetMemberRole(w http.ResponseWriter, r *http.Request) {
	serverID, err := request.GetParamUUID(r, "serverID")
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}
	targetUserID, err := request.GetParamUUID(r, "userID")
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}

	var req setMemberRoleRequest
	if err := a.parser.ParseJSON(w, r, &req); err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}
	if req.RoleID == uuid.Nil {
		response.RenderUnprocessableEntity(w, "role_id is required")
		return
	}

	if !a.requireAdmin(w, r, serverID) {
		return
	}

	member, err := a.deps.Access.SetMemberRole(r.Context(), serverID, targetUserID, req.RoleID)
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}

	response.RenderJSON(w, http.StatusOK, member)
}
