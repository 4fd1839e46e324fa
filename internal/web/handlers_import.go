package web

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/catalog/internal/core"
	"github.com/JonMunkholm/catalog/internal/logging"
)

// multipartOverhead is allowed on top of the file limit for form framing.
const multipartOverhead = 1 << 20

// sheetListSentinel makes /parse list sheets instead of rows.
const sheetListSentinel = "list"

type uploadedFile struct {
	Name  string
	Data  []byte
	Sheet string
}

// readUpload reads the multipart "file" field and the optional sheet name.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (uploadedFile, error) {
	if limit := s.cfg.Upload.MaxFileSize; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return uploadedFile{}, err
		case errors.Is(err, http.ErrNotMultipart):
			return uploadedFile{}, errNoFile
		}
		return uploadedFile{}, &requestError{err: fmt.Errorf("invalid form: %w", err)}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return uploadedFile{}, errNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return uploadedFile{}, fmt.Errorf("read upload: %w", err)
	}

	sheet := strings.TrimSpace(r.FormValue("sheetName"))
	if sheet == "" {
		sheet = strings.TrimSpace(r.FormValue("sheet"))
	}
	return uploadedFile{Name: header.Filename, Data: data, Sheet: sheet}, nil
}

// handleListSheets returns the sheet names of an uploaded workbook.
func (s *Server) handleListSheets(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	sheets, err := s.service.ListSheets(r.Context(), up.Name, up.Data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"sheets": sheets})
}

type parseResponse struct {
	Sheet    string              `json:"sheet,omitempty"`
	Headers  []string            `json:"headers"`
	Products []map[string]string `json:"products"`
}

// handleParse returns raw header-keyed rows. sheetName=list returns the
// sheet listing instead.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if up.Sheet == sheetListSentinel {
		sheets, err := s.service.ListSheets(r.Context(), up.Name, up.Data)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]any{"sheets": sheets})
		return
	}

	table, err := s.service.Extract(r.Context(), up.Name, up.Data, up.Sheet)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	products := make([]map[string]string, len(table.Rows))
	for i, row := range table.Rows {
		products[i] = row.Values
	}
	writeJSON(w, r, http.StatusOK, parseResponse{Sheet: table.Sheet, Headers: table.Headers, Products: products})
}

// handlePreview maps and validates a file without writing anything.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	preview, err := s.service.Preview(r.Context(), up.Name, up.Data, up.Sheet)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, preview)
}

// handleImport runs the full pipeline on an uploaded file.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	req := core.ImportRequest{Filename: up.Name, Data: up.Data, Sheet: up.Sheet}
	if v := strings.TrimSpace(r.FormValue("allowPartial")); v != "" {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, r, &requestError{fields: map[string]string{"allowPartial": "must be true or false"}})
			return
		}
		req.AllowPartial = &allow
	}

	report, err := s.service.ImportFile(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("file imported",
		slog.String("file", up.Name),
		slog.String("import_id", report.ImportID),
		slog.Int("successful", report.Summary.Successful),
		slog.Int("failed", report.Summary.Failed),
	)
	writeJSON(w, r, http.StatusOK, report)
}

type bulkImportRequest struct {
	Products []core.CanonicalRow `json:"products" validate:"required,max=10000"`
}

type bulkImportResponse struct {
	Success  bool                 `json:"success"`
	ImportID string               `json:"import_id"`
	Summary  core.ImportSummary   `json:"summary"`
	Results  []core.CommitOutcome `json:"results"`
}

// handleBulkImport commits already-mapped rows. Invalid rows are reported
// per row and never block the others.
func (s *Server) handleBulkImport(w http.ResponseWriter, r *http.Request) {
	var req bulkImportRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	report, err := s.service.Commit(r.Context(), req.Products)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, bulkImportResponse{
		Success:  true,
		ImportID: report.ImportID,
		Summary:  report.Summary,
		Results:  report.Results,
	})
}
