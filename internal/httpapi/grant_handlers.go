package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tradefloor/tradefloor/internal/domain"
	"github.com/tradefloor/tradefloor/internal/web/request"
	"github.com/tradefloor/tradefloor/internal/web/response"
)

// resolveRoleForAdmin loads the role from the path and verifies the
// caller administers its server. Returns nil after writing the
// response when either step fails.
func (a *API) resolveRoleForAdmin(w http.ResponseWriter, r *http.Request) *domain.Role {
	roleID, err := request.GetParamUUID(r, "roleID")
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return nil
	}

	role, err := a.deps.Access.GetRole(r.Context(), roleID)
	if err != nil {
		a.renderServiceError(w, r, err)
		return nil
	}

	if !a.requireAdmin(w, r, role.ServerID) {
		return nil
	}
	return role
}

func (a *API) grantTarget(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, *domain.Role) {
	role := a.resolveRoleForAdmin(w, r)
	if role == nil {
		return uuid.Nil, nil
	}

	targetID, err := request.GetParamUUID(r, param)
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return uuid.Nil, nil
	}
	return targetID, role
}

func (a *API) handleGrantChannel(w http.ResponseWriter, r *http.Request) {
	channelID, role := a.grantTarget(w, r, "channelID")
	if role == nil {
		return
	}

	if err := a.deps.Access.GrantChannel(r.Context(), role.ID, channelID); err != nil {
		a.renderServiceError(w, r, err)
		return
	}
	response.RenderNoContent(w)
}

func (a *API) handleRevokeChannel(w http.ResponseWriter, r *http.Request) {
	channelID, role := a.grantTarget(w, r, "channelID")
	if role == nil {
		return
	}

	if err := a.deps.Access.RevokeChannel(r.Context(), role.ID, channelID); err != nil {
		a.renderServiceError(w, r, err)
		return
	}
	response.RenderNoContent(w)
}

func (a *API) handleGrantSection(w http.ResponseWriter, r *http.Request) {
	sectionID, role := a.grantTarget(w, r, "sectionID")
	if role == nil {
		return
	}

	if err := a.deps.Access.GrantSection(r.Context(), role.ID, sectionID); err != nil {
		a.renderServiceError(w, r, err)
		return
	}
	response.RenderNoContent(w)
}

func (a *API) handleRevokeSection(w http.ResponseWriter, r *http.Request) {
	sectionID, role := a.grantTarget(w, r, "sectionID")
	if role == nil {
		return
	}

	if err := a.deps.Access.RevokeSection(r.Context(), role.ID, sectionID); err != nil {
		a.renderServiceError(w, r, err)
		return
	}
	response.RenderNoContent(w)
}
