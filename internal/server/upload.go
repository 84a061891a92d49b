package server

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"

	"followmate/internal/auth"
	"followmate/internal/storage"
)

const (
	photoField          = "profilePhoto"
	defaultMaxPhotoSize = 10 << 20
	multipartOverhead   = 1 << 20
)

var (
	errPhotoTooLarge = errors.New("photo too large")
	errPhotoType     = errors.New("unsupported photo type")
	errBadForm       = errors.New("invalid form data")
)

func (s *Server) maxPhotoBytes() int64 {
	if n := s.Config.Storage.MaxUploadBytes(); n > 0 {
		return n
	}
	return defaultMaxPhotoSize
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// parseMultipart caps the body and parses the form into memory.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	limit := s.maxPhotoBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(limit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errPhotoTooLarge
		}
		return errBadForm
	}
	return nil
}

// formPhoto returns the uploaded image, or nil when the field is absent.
// The content type is sniffed from the bytes, not taken from the client.
func (s *Server) formPhoto(r *http.Request) (*auth.Photo, error) {
	file, header, err := r.FormFile(photoField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, errBadForm
	}
	defer file.Close()

	limit := s.maxPhotoBytes()
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, errBadForm
	}
	if int64(len(data)) > limit {
		return nil, errPhotoTooLarge
	}

	contentType := http.DetectContentType(data)
	if _, ok := storage.AllowedTypes[contentType]; !ok {
		return nil, errPhotoType
	}

	return &auth.Photo{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	}, nil
}

func writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errPhotoTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "Image is too large")
	case errors.Is(err, errPhotoType):
		writeError(w, http.StatusBadRequest, "Only JPEG, PNG, GIF or WebP images are allowed")
	default:
		writeError(w, http.StatusBadRequest, "Invalid form data")
	}
}
