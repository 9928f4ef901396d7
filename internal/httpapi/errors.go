package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/tradefloor/tradefloor/internal/access"
	"github.com/tradefloor/tradefloor/internal/account"
	"github.com/tradefloor/tradefloor/internal/chat"
	"github.com/tradefloor/tradefloor/internal/db"
	"github.com/tradefloor/tradefloor/internal/notify"
	"github.com/tradefloor/tradefloor/internal/push"
	"github.com/tradefloor/tradefloor/internal/web/middleware"
	"github.com/tradefloor/tradefloor/internal/web/response"
)

// renderServiceError maps service sentinels onto HTTP responses.
// Channel access failures render as 404 so non-members cannot probe
// which channels exist.
func (a *API) renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *account.ValidationError
	if errors.As(err, &validationErr) {
		response.RenderValidationError(w, validationErr.Fields)
		return
	}

	switch {
	case errors.Is(err, account.ErrInvalidCredentials):
		response.RenderUnauthorized(w, "invalid email or password")
	case errors.Is(err, account.ErrEmailTaken):
		response.RenderConflict(w, "an account with this email already exists")
	case errors.Is(err, chat.ErrNoAccess), errors.Is(err, notify.ErrNoAccess):
		response.RenderNotFound(w, "channel not found or not accessible")
	case errors.Is(err, chat.ErrEmptyBody):
		response.RenderUnprocessableEntity(w, "message body must not be empty")
	case errors.Is(err, chat.ErrBodyTooLong):
		response.RenderUnprocessableEntity(w, "message body exceeds the maximum length")
	case errors.Is(err, chat.ErrRateLimited):
		response.RenderErrorWithCode(w, http.StatusTooManyRequests, err, "rate_limited")
	case errors.Is(err, access.ErrNotMember):
		response.RenderForbidden(w, "not a member of this server")
	case errors.Is(err, access.ErrCrossServer):
		response.RenderUnprocessableEntity(w, "resources belong to different servers")
	case errors.Is(err, push.ErrInvalidSubscription):
		response.RenderUnprocessableEntity(w, "invalid push subscription")
	case errors.Is(err, db.ErrNotFound):
		response.RenderNotFound(w, "resource not found")
	case errors.Is(err, db.ErrUniqueViolation):
		response.RenderConflict(w, "resource already exists")
	case errors.Is(err, db.ErrForeignKeyViolation):
		response.RenderUnprocessableEntity(w, "referenced resource does not exist")
	default:
		a.log.Error("request failed",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		response.RenderInternalError(w, err)
	}
}
