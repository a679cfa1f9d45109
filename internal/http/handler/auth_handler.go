package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sandeepkv93/todo-auth-core/internal/domain"
	"github.com/sandeepkv93/todo-auth-core/internal/http/middleware"
	"github.com/sandeepkv93/todo-auth-core/internal/http/response"
	"github.com/sandeepkv93/todo-auth-core/internal/observability"
	"github.com/sandeepkv93/todo-auth-core/internal/service"
)

const silentAcceptMessage = "if the account exists, a code has been sent"

type AuthHandler struct {
	auth     service.AuthServiceInterface
	validate *validator.Validate
}

func NewAuthHandler(auth service.AuthServiceInterface) *AuthHandler {
	return &AuthHandler{auth: auth, validate: newValidator()}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	res, err := h.auth.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Meta:     requestMeta(r),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.register", res.UserID)
	response.JSON(w, r, http.StatusCreated, res)
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	res, err := h.auth.VerifyEmail(r.Context(), service.VerifyEmailInput{
		Email: req.Email,
		Code:  req.Code,
		Meta:  requestMeta(r),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, res)
}

func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req resendVerificationRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	purpose := domain.PurposeRegister
	if req.Purpose != "" {
		purpose = domain.VerificationPurpose(req.Purpose)
	}
	if err := h.auth.ResendVerification(r.Context(), req.Email, purpose, requestMeta(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"message": silentAcceptMessage})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	res, err := h.auth.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Meta:     requestMeta(r),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.login", res.UserID, slog.String("session_id", res.SessionID))
	response.JSON(w, r, http.StatusOK, res)
}

// Refresh redeems the refresh token carried as the bearer credential.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw := middleware.BearerToken(r)
	if raw == "" {
		response.Error(w, r, http.StatusUnauthorized, "REFRESH_TOKEN_INVALID", "missing refresh token", nil)
		return
	}
	res, err := h.auth.Refresh(r.Context(), raw, requestMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, res)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized", nil)
		return
	}
	if err := h.auth.Logout(r.Context(), claims, requestMeta(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.logout", claims.UserID(), slog.String("session_id", claims.SessionID))
	response.JSON(w, r, http.StatusOK, map[string]bool{"loggedOut": true})
}

func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized", nil)
		return
	}
	n, err := h.auth.LogoutAll(r.Context(), claims.UserID(), requestMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.logout_all", claims.UserID(), slog.Int64("revoked", n))
	response.JSON(w, r, http.StatusOK, map[string]int64{"revokedSessions": n})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized", nil)
		return
	}
	var req changePasswordRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	err := h.auth.ChangePassword(r.Context(), service.ChangePasswordInput{
		UserID:          claims.UserID(),
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		Meta:            requestMeta(r),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.password_changed", claims.UserID())
	response.JSON(w, r, http.StatusOK, map[string]bool{"passwordChanged": true})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	if err := h.auth.ForgotPassword(r.Context(), req.Email, requestMeta(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"message": silentAcceptMessage})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	err := h.auth.ResetPassword(r.Context(), service.ResetPasswordInput{
		Email:       req.Email,
		Code:        req.Code,
		NewPassword: req.NewPassword,
		Meta:        requestMeta(r),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]bool{"passwordReset": true})
}

func (h *AuthHandler) LinkExternalCredential(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized", nil)
		return
	}
	var req linkExternalRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}
	view, err := h.auth.LinkExternalCredential(r.Context(), service.LinkExternalInput{
		UserID:    claims.UserID(),
		Provider:  domain.CredentialProvider(req.Provider),
		AccountID: req.ProviderAccountID,
		Token:     req.token(time.Now()),
		Meta:      requestMeta(r),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.external_credential_linked", claims.UserID(), slog.String("provider", req.Provider))
	response.JSON(w, r, http.StatusCreated, map[string]any{"credential": view})
}

func (h *AuthHandler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized", nil)
		return
	}
	creds, err := h.auth.ListCredentials(r.Context(), claims.UserID())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if creds == nil {
		creds = []service.CredentialView{}
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"credentials": creds})
}
