package server

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"followmate/internal/auth"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

func (s *Server) handleUpdateProfilePhoto(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var photo *auth.Photo
	if isMultipart(r) {
		if err := s.parseMultipart(w, r); err != nil {
			writeUploadError(w, err)
			return
		}
		var err error
		if photo, err = s.formPhoto(r); err != nil {
			writeUploadError(w, err)
			return
		}
	}

	user, err := s.Auth.UpdateProfilePhoto(r.Context(), claims.UserID, photo)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.audit(r, auth.AuditPhotoUpdated, claims.UserID, nil)
	writeJSON(w, http.StatusOK, map[string]interface{}{"msg": "Profile photo updated", "user": user})
}

// handleActivity lists the caller's recent audit events, oldest first.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit := int64(defaultActivityLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, maxActivityLimit)
	}

	events := []auth.AuditEvent{}
	if s.Audit != nil {
		recent, err := s.Audit.Recent(r.Context(), claims.UserID, limit)
		if err != nil {
			s.Logger.Error("read activity failed", zap.String("user_id", claims.UserID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Something went wrong")
			return
		}
		events = recent
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}
