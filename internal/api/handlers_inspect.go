package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docforge/internal/render"
)

type templateRequest struct {
	Template []byte `json:"template"`
}

func (s *Server) handleInspectDocx(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !s.decodeJSON(w, r, s.cfg.MaxRequestBytes, &req) {
		return
	}
	ctx, cancel := s.renderContext(r)
	defer cancel()
	out, err := s.svc.InspectDocx(ctx, req.Template)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleInspectPDF(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !s.decodeJSON(w, r, s.cfg.MaxRequestBytes, &req) {
		return
	}
	ctx, cancel := s.renderContext(r)
	defer cancel()
	det, err := s.svc.InspectPDF(ctx, req.Template)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, det)
}

type validateRequest struct {
	Document       []byte   `json:"document"`
	ExpectedFields []string `json:"expected_fields,omitempty"`
}

func (s *Server) handleValidateDocx(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !s.decodeJSON(w, r, s.cfg.MaxRequestBytes, &req) {
		return
	}
	ctx, cancel := s.renderContext(r)
	defer cancel()
	res, err := s.svc.ValidateDocx(ctx, req.Document, req.ExpectedFields)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleInspectUpload inspects a template sent as a multipart "file"
// part. The format is sniffed from the content, not the file name.
func (s *Server) handleInspectUpload(w http.ResponseWriter, r *http.Request) {
	// Extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxRequestBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxRequestBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxRequestBytes), http.StatusRequestEntityTooLarge)
		return
	}

	ctx, cancel := s.renderContext(r)
	defer cancel()
	name := sanitizeFilename(header.Filename)
	format := render.Sniff(data)
	resp := map[string]any{"filename": name, "format": format}
	switch format {
	case render.FormatDOCX:
		out, err := s.svc.InspectDocx(ctx, data)
		if err != nil {
			jsonError(w, err.Error(), statusFor(err))
			return
		}
		resp["docx"] = out
	case render.FormatPDF:
		det, err := s.svc.InspectPDF(ctx, data)
		if err != nil {
			jsonError(w, err.Error(), statusFor(err))
			return
		}
		resp["pdf"] = det
	default:
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(name)), http.StatusUnsupportedMediaType)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	name = strings.ReplaceAll(name, `"`, "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
