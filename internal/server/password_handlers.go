package server

import (
	"net/http"

	"followmate/internal/auth"
	"followmate/internal/i18n"
)

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	userID, err := s.Auth.ForgotPassword(r.Context(), req.Email, i18n.LocaleFromRequest(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Reset code sent", "userId": userID})
}

func (s *Server) handleVerifyResetCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.Auth.VerifyResetCode(r.Context(), req.UserID, req.Code); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, "Code verified")
}

type resetPasswordRequest struct {
	UserID   string `json:"userId"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := s.Auth.ResetPassword(r.Context(), auth.ResetPasswordInput{
		UserID:   req.UserID,
		Code:     req.Code,
		Password: req.Password,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.audit(r, auth.AuditPasswordReset, req.UserID, nil)
	writeMessage(w, "Password updated")
}

func (s *Server) handleRequestChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	userID, err := s.Auth.RequestChangePassword(r.Context(), claims.UserID, i18n.LocaleFromRequest(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Change password code sent", "userId": userID})
}

type changeCodeRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleVerifyChangePasswordCode(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req changeCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.Auth.VerifyChangePasswordCode(r.Context(), claims.UserID, req.Code); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, "Code verified")
}

type changePasswordRequest struct {
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := s.Auth.ChangePassword(r.Context(), auth.ChangePasswordInput{
		UserID:      claims.UserID,
		Code:        req.Code,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.audit(r, auth.AuditPasswordChanged, claims.UserID, nil)
	writeMessage(w, "Password changed successfully")
}
