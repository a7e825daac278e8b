package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tasktrack/internal/tasks/domain"
	"github.com/aussiebroadwan/tasktrack/internal/tasks/service"
	"github.com/aussiebroadwan/tasktrack/pkg/httpx"
	"github.com/aussiebroadwan/tasktrack/pkg/slogx"
	"github.com/aussiebroadwan/tasktrack/pkg/tasksdk"
)

var (
	errInvalidCredentials = httpx.APIError{
		Code:        tasksdk.ErrorCodeInvalidCredentials,
		Description: "Invalid username or password.",
	}
	errUsernameTaken = httpx.APIError{
		Code:        tasksdk.ErrorCodeUsernameTaken,
		Description: "The username is already registered.",
	}
	errReauthenticationRequired = httpx.APIError{
		Code:        tasksdk.ErrorCodeReauthenticationRequired,
		Description: "The refresh token has already been used. Please log in again.",
	}
	errInvalidRefreshToken = httpx.APIError{
		Code:        tasksdk.ErrorCodeInvalidRefreshToken,
		Description: "The refresh token is invalid or expired.",
	}
	errMissingBearer = httpx.ErrInvalidRequest.WithDescription("An Authorization: Bearer header is required.")
)

// AuthHandler serves the public /auth endpoints.
type AuthHandler struct {
	UserService  *service.UserService
	TokenService *service.TokenService
}

// HandleRegister godoc
//
//	@Summary		Register
//	@Description	Creates a principal and logs it straight in.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		tasksdk.RegisterRequest	true	"username, email, password"
//	@Success		200		{object}	tasksdk.AuthResponse
//	@Failure		400		{object}	tasksdk.ErrorResponse	"Invalid registration"
//	@Failure		409		{object}	tasksdk.ErrorResponse	"Username taken"
//	@Failure		429		{object}	tasksdk.ErrorResponse
//	@Router			/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req tasksdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrInvalidRequest.WithDescription(err.Error()))
		return
	}

	p, err := h.UserService.Register(ctx, req.Username, req.Email, req.Password)
	switch {
	case errors.Is(err, service.ErrInvalidRegistration):
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrInvalidRequest.WithDescription(describe(err)))
		return
	case errors.Is(err, service.ErrUsernameTaken):
		httpx.WriteError(w, http.StatusConflict, errUsernameTaken)
		return
	case err != nil:
		log.Error("register failed", slog.Any("err", err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.ErrServerError)
		return
	}

	h.writeSession(w, r, p)
}

// HandleLogin godoc
//
//	@Summary		Log in
//	@Description	Exchanges a username and password for an access and refresh token.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		tasksdk.LoginRequest	true	"username, password"
//	@Success		200		{object}	tasksdk.AuthResponse
//	@Failure		400		{object}	tasksdk.ErrorResponse
//	@Failure		401		{object}	tasksdk.ErrorResponse	"Invalid credentials"
//	@Failure		429		{object}	tasksdk.ErrorResponse
//	@Router			/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req tasksdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrInvalidRequest.WithDescription(err.Error()))
		return
	}
	if req.Username == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrInvalidRequest.WithDescription("username and password are required"))
		return
	}

	p, err := h.UserService.Login(ctx, req.Username, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		log.Info("login rejected", slog.String("username", req.Username))
		httpx.WriteError(w, http.StatusUnauthorized, errInvalidCredentials)
		return
	}
	if err != nil {
		log.Error("login failed", slog.Any("err", err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.ErrServerError)
		return
	}

	h.writeSession(w, r, p)
}

// HandleRefresh godoc
//
//	@Summary		Refresh
//	@Description	Redeems a refresh token for a new pair. Each refresh token works once.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		tasksdk.RefreshRequest	true	"refreshToken"
//	@Success		200		{object}	tasksdk.AuthResponse
//	@Failure		400		{object}	tasksdk.ErrorResponse	"invalid_refresh_token or reauthentication_required"
//	@Failure		429		{object}	tasksdk.ErrorResponse
//	@Router			/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req tasksdk.RefreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrInvalidRequest.WithDescription(err.Error()))
		return
	}
	if req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrInvalidRequest.WithDescription("refreshToken is required"))
		return
	}

	pair, subject, err := h.TokenService.Refresh(ctx, req.RefreshToken)
	switch {
	case errors.Is(err, service.ErrRevoked):
		httpx.WriteError(w, http.StatusBadRequest, errReauthenticationRequired)
		return
	case service.IsAuthError(err):
		log.Warn("refresh token rejected", slog.Any("reason", err))
		httpx.WriteError(w, http.StatusBadRequest, errInvalidRefreshToken)
		return
	case err != nil:
		log.Error("refresh failed", slog.Any("err", err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.ErrServerError)
		return
	}

	p, err := h.UserService.FindPrincipalByID(ctx, subject)
	if errors.Is(err, service.ErrPrincipalNotFound) {
		log.Warn("refresh for unknown principal", slog.String("user_id", subject))
		httpx.WriteError(w, http.StatusBadRequest, errInvalidRefreshToken)
		return
	}
	if err != nil {
		log.Error("failed to load principal", slog.Any("err", err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.ErrServerError)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authResponse(pair, p))
}

// HandleLogout godoc
//
//	@Summary		Log out
//	@Description	Revokes the bearer access token until it would have expired.
//	@Description	Repeating the call, or calling it with an already expired token, succeeds.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	"Token revoked"
//	@Failure		400	{object}	tasksdk.ErrorResponse	"Missing bearer token"
//	@Router			/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	token, ok := httpx.BearerToken(r)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, errMissingBearer)
		return
	}

	if err := h.TokenService.RevokeAccess(ctx, token); err != nil {
		if !service.IsAuthError(err) {
			log.Error("logout failed", slog.Any("err", err))
			httpx.WriteError(w, http.StatusInternalServerError, httpx.ErrServerError)
			return
		}
		// A token that cannot be revoked cannot be used either.
		log.Warn("logout with unusable token", slog.Any("reason", err))
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	pair, err := h.TokenService.Issue(r.Context(), p.ID)
	if err != nil {
		slogx.FromContext(r.Context()).Error("failed to issue tokens", slog.Any("err", err))
		httpx.WriteError(w, http.StatusInternalServerError, httpx.ErrServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authResponse(pair, p))
}

func authResponse(pair domain.TokenPair, p domain.Principal) tasksdk.AuthResponse {
	return tasksdk.AuthResponse{
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
		Principal:    principalInfo(p),
	}
}

func principalInfo(p domain.Principal) tasksdk.PrincipalInfo {
	roles := p.Roles
	if roles == nil {
		roles = []string{}
	}
	return tasksdk.PrincipalInfo{
		ID:       p.ID,
		Username: p.Username,
		Email:    p.Email,
		Roles:    roles,
	}
}

// describe strips the sentinel prefix from a wrapped validation error.
func describe(err error) string {
	_, detail, found := strings.Cut(err.Error(), ": ")
	if !found {
		return err.Error()
	}
	return detail
}
