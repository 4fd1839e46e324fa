package web

import (
	"bytes"
	"errors"
	"io"
	"net/http"
)

// handleImageUpload stores one product image and returns its public URL.
// The content type is sniffed from the bytes, not taken from the client.
func (s *Server) handleImageUpload(w http.ResponseWriter, r *http.Request) {
	if s.images == nil {
		s.respondError(w, r, errUnavailable)
		return
	}

	if limit := s.images.MaxSize(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, err)
			return
		}
		s.respondError(w, r, errNoFile)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errNoFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if len(data) == 0 {
		s.respondError(w, r, errNoFile)
		return
	}

	contentType := http.DetectContentType(data)
	url, err := s.images.Upload(r.Context(), contentType, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"url": url})
}
