package server

import (
	"net/http"

	"followmate/internal/auth"
	"followmate/internal/i18n"
)

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleSignup accepts multipart/form-data with an optional profilePhoto, or plain JSON.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var (
		req   signupRequest
		photo *auth.Photo
	)
	if isMultipart(r) {
		if err := s.parseMultipart(w, r); err != nil {
			writeUploadError(w, err)
			return
		}
		req = signupRequest{
			Name:     r.FormValue("name"),
			Email:    r.FormValue("email"),
			Password: r.FormValue("password"),
		}
		var err error
		if photo, err = s.formPhoto(r); err != nil {
			writeUploadError(w, err)
			return
		}
	} else if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	userID, err := s.Auth.Signup(r.Context(), auth.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Photo:    photo,
		Locale:   i18n.LocaleFromRequest(r),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.audit(r, auth.AuditSignup, userID, nil)
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Verification code sent", "userId": userID})
}

type codeRequest struct {
	UserID string `json:"userId"`
	Code   string `json:"code"`
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.Auth.VerifyEmail(r.Context(), req.UserID, req.Code); err != nil {
		s.fail(w, r, err)
		return
	}

	s.audit(r, auth.AuditEmailVerified, req.UserID, nil)
	writeMessage(w, "Email verified")
}

type emailRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	userID, err := s.Auth.ResendVerification(r.Context(), req.Email, i18n.LocaleFromRequest(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Verification code sent", "userId": userID})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := s.Auth.Login(r.Context(), auth.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		s.audit(r, auth.AuditLoginFailed, "", map[string]interface{}{
			"email":  auth.NormalizeEmail(req.Email),
			"reason": auth.KindOf(err).String(),
		})
		s.fail(w, r, err)
		return
	}

	s.audit(r, auth.AuditLogin, res.User.ID, nil)
	writeJSON(w, http.StatusOK, res)
}

type googleRequest struct {
	Credential  string `json:"credential"`
	AccessToken string `json:"accessToken"`
}

func (s *Server) handleGoogle(w http.ResponseWriter, r *http.Request) {
	var req googleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := s.Auth.GoogleAuth(r.Context(), auth.GoogleAuthInput{
		Credential:  req.Credential,
		AccessToken: req.AccessToken,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.audit(r, auth.AuditGoogleLogin, res.User.ID, nil)
	writeJSON(w, http.StatusOK, res)
}
