package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/lmhq-94/parkit-sub000/internal/audit"
	"github.com/lmhq-94/parkit-sub000/internal/auth"
	"github.com/lmhq-94/parkit-sub000/internal/obs"
)

type registerRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	OrganizationID string `json:"organization_id,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type sessionResponse struct {
	User   *auth.User     `json:"user,omitempty"`
	Tokens auth.TokenPair `json:"tokens"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	user, pair, err := a.auth.Register(r.Context(), auth.RegisterInput{
		Email:          req.Email,
		Password:       req.Password,
		OrganizationID: req.OrganizationID,
	})
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	audit.Event(r.Context(), "auth.user.registered",
		zap.String("user_id", user.ID),
		zap.String("email", user.Email),
	)
	writeJSON(w, http.StatusCreated, sessionResponse{User: user, Tokens: pair})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	user, pair, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			obs.ObserveLogin("failure")
			audit.Event(r.Context(), "auth.login.failed", zap.String("remote", clientIP(r)))
		}
		writeAuthError(w, r, err)
		return
	}
	obs.ObserveLogin("success")
	audit.Event(r.Context(), "auth.login.succeeded", zap.String("user_id", user.ID))
	writeJSON(w, http.StatusOK, sessionResponse{User: user, Tokens: pair})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	user, pair, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	audit.Event(r.Context(), "auth.token.refreshed", zap.String("user_id", user.ID))
	writeJSON(w, http.StatusOK, sessionResponse{Tokens: pair})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if err := a.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		writeAuthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if err := a.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		writeAuthError(w, r, err)
		return
	}
	audit.Event(r.Context(), "auth.reset.requested")
	// The same answer whether or not the account exists.
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "if the account exists, a reset link has been sent",
	})
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if err := a.auth.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeAuthError(w, r, err)
		return
	}
	audit.Event(r.Context(), "auth.password.reset")
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "password has been reset",
	})
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeAuthError(w, r, auth.ErrAuthRequired)
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if err := a.auth.ChangePassword(r.Context(), principal.User.ID, req.CurrentPassword, req.NewPassword); err != nil {
		writeAuthError(w, r, err)
		return
	}
	audit.Event(r.Context(), "auth.password.changed")
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "password has been changed",
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeAuthError(w, r, auth.ErrAuthRequired)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":        principal.User,
		"permissions": auth.PermissionsForRole(principal.User.Role),
	})
}
