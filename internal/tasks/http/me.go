package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/tasktrack/internal/tasks/service"
	"github.com/aussiebroadwan/tasktrack/pkg/httpx"
	"github.com/aussiebroadwan/tasktrack/pkg/slogx"
)

type MeHandler struct {
	UserService *service.UserService
}

// ServeHTTP godoc
//
//	@Summary		Current principal
//	@Description	Returns the profile of the principal named by the access token.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	tasksdk.PrincipalInfo
//	@Failure		401	{object}	tasksdk.ErrorResponse
//	@Failure		404	{object}	tasksdk.ErrorResponse	"Principal no longer exists"
//	@Router			/me [get].
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := httpx.PrincipalFromContext(ctx)

	p, err := h.UserService.FindPrincipalByID(ctx, userID)
	if errors.Is(err, service.ErrPrincipalNotFound) {
		httpx.WriteError(w, http.StatusNotFound, httpx.ErrNotFound)
		return
	}
	if err != nil {
		slogx.FromContext(ctx).Warn("failed to load user", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, httpx.ErrServerError)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, principalInfo(p))
}
